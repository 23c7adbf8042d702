package persist

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/roach88/labseq/internal/dataset"
)

// JSONExt is the extension of saved result documents.
const JSONExt = ".json"

// Component is anything owning a results store tagged with a provenance
// kind: conditions and measurements.
type Component interface {
	Kind() string
	SetResults(s *dataset.Store)
}

// SaveJSON writes s to path as an indented JSON document. An existing
// file is replaced.
func SaveJSON(path string, s *dataset.Store) error {
	if err := checkExt(path, JSONExt); err != nil {
		return err
	}
	compact, err := json.Marshal(s)
	if err != nil {
		return &Error{Code: ErrCodeEncode, Path: path, Err: err}
	}
	var buf bytes.Buffer
	if err := json.Indent(&buf, compact, "", "  "); err != nil {
		return &Error{Code: ErrCodeEncode, Path: path, Err: err}
	}
	buf.WriteByte('\n')
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		return &Error{Code: ErrCodeEncode, Path: path, Err: err}
	}
	return nil
}

// LoadJSON reads a document saved by SaveJSON into a new store owned by
// owner.
func LoadJSON(path, owner string) (*dataset.Store, error) {
	if err := checkExt(path, JSONExt); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, &Error{Code: ErrCodeNotFound, Path: path, Err: err}
		}
		return nil, &Error{Code: ErrCodeDecode, Path: path, Err: err}
	}
	s := dataset.NewStore(owner)
	if err := json.Unmarshal(data, s); err != nil {
		return nil, &Error{Code: ErrCodeDecode, Path: path, Err: err}
	}
	return s, nil
}

// LoadInto reads a saved document and gives c the variables tagged with
// its kind. It fails with NO_MATCHING_DATA when there are none; c is left
// untouched on any error.
func LoadInto(path string, c Component) error {
	s, err := LoadJSON(path, c.Kind())
	if err != nil {
		return err
	}
	sub := s.FilterByProvenance(c.Kind())
	if sub.Empty() {
		return &Error{
			Code: ErrCodeNoMatchingData,
			Path: path,
			Err:  fmt.Errorf("no variables with provenance %q", c.Kind()),
		}
	}
	c.SetResults(sub)
	return nil
}

func checkExt(path, want string) error {
	if !strings.EqualFold(filepath.Ext(path), want) {
		return &Error{Code: ErrCodeBadExtension, Path: path, Err: fmt.Errorf("want %s", want)}
	}
	return nil
}
