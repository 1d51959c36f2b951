package disk

import (
	"fmt"

	"github.com/mitchellh/mapstructure"
)

// DefaultPageSize is the standard page size (4KB) used when no explicit
// size is configured.
const DefaultPageSize = 4096

// Options holds the configuration for a disk manager.
type Options struct {
	// Path is the directory the data file lives in. Created if missing.
	Path string
	// PageSize is the fixed size of every page in bytes.
	PageSize int
	// SyncWrites forces an fsync after every page write.
	SyncWrites bool
	// DataFile is the name of the data file inside Path.
	DataFile string
}

// DefaultOptions returns the options used when callers don't care.
func DefaultOptions(path string) Options {
	return Options{
		Path:       path,
		PageSize:   DefaultPageSize,
		SyncWrites: true,
		DataFile:   "framedb.data",
	}
}

// OptionsFromMap converts a generic key/value map to Options by mapping
// key names to fields in the struct. It uses the mapstructure library to
// do the task; unset keys keep their defaults.
func OptionsFromMap(path string, input map[string]interface{}) (Options, error) {
	opts := DefaultOptions(path)
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Metadata: nil,
		Result:   &opts,
	})
	if err != nil {
		return opts, fmt.Errorf("cannot build options decoder: %v", err)
	}
	if err := decoder.Decode(input); err != nil {
		return opts, fmt.Errorf("cannot decode options: %v", err)
	}
	if err := opts.validate(); err != nil {
		return opts, err
	}
	return opts, nil
}

func (o Options) validate() error {
	if o.PageSize <= 0 {
		return fmt.Errorf("invalid page size %d", o.PageSize)
	}
	if o.DataFile == "" {
		return fmt.Errorf("data file name must not be empty")
	}
	return nil
}
