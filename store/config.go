package store

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/bobg/vs"
)

// CreateFromFile creates a store from the config object in filename.
// Files ending in .yaml or .yml are parsed as YAML;
// anything else as JSON.
// The object's "type" field names the backend
// and the whole object is the backend's config.
func CreateFromFile(ctx context.Context, filename string) (vs.Store, error) {
	f, err := os.Open(filename)
	if err != nil {
		return nil, errors.Wrapf(err, "opening config file %s", filename)
	}
	defer f.Close()

	var conf map[string]interface{}
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".yaml", ".yml":
		err = yaml.NewDecoder(f).Decode(&conf)

	default:
		dec := json.NewDecoder(f)
		dec.UseNumber()
		err = dec.Decode(&conf)
	}
	if err != nil {
		return nil, errors.Wrapf(err, "decoding config file %s", filename)
	}

	typ, ok := conf["type"].(string)
	if !ok {
		return nil, fmt.Errorf("config file %s missing `type` parameter", filename)
	}

	return Create(ctx, typ, conf)
}
