package artifact

import (
	"bufio"
	"encoding/gob"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/golang/snappy"

	"rhythmset/internal/fileutil"
)

const formatVersion byte = 1

var magic = [4]byte{'R', 'S', 'W', formatVersion}

// ErrBadFormat indicates a file that is not a rhythmset artifact.
var ErrBadFormat = errors.New("not a rhythmset artifact")

func writeBinary(path string, v any) error {
	return fileutil.WriteAtomic(path, 0o644, func(w io.Writer) error {
		if _, err := w.Write(magic[:]); err != nil {
			return err
		}
		sw := snappy.NewBufferedWriter(w)
		if err := gob.NewEncoder(sw).Encode(v); err != nil {
			_ = sw.Close()
			return fmt.Errorf("encode %T: %w", v, err)
		}
		return sw.Close()
	})
}

func readBinary(path string, v any) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	br := bufio.NewReader(f)
	var head [4]byte
	if _, err := io.ReadFull(br, head[:]); err != nil || head != magic {
		return fmt.Errorf("%w: %s", ErrBadFormat, path)
	}
	if err := gob.NewDecoder(snappy.NewReader(br)).Decode(v); err != nil {
		return fmt.Errorf("decode %T: %w", v, err)
	}
	return nil
}
