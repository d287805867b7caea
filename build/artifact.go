package build

import (
	"io"
	"os"
	"path/filepath"
)

// writeArtifact creates the file at path, creating its directory if needed,
// and fills it with write
func writeArtifact(path string, write func(w io.Writer) error) error {
	if err := os.MkdirAll(filepath.Dir(path), os.ModePerm); err != nil {
		return err
	}

	f, err := os.Create(path)
	if err != nil {
		return err
	}

	if err := write(f); err != nil {
		f.Close()
		return err
	}

	return f.Close()
}
