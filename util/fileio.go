package util

import "os"

// WriteAtOffset writes buf to f starting at the given byte offset. A
// short write is treated as a failure rather than silently partially
// committed.
func WriteAtOffset(f *os.File, buf []byte, offset int64) error {
	n, err := f.WriteAt(buf, offset)
	if err != nil {
		return err
	}
	if n != len(buf) {
		return os.ErrClosed
	}
	return nil
}

// ReadAtOffset reads len(buf) bytes from f starting at the given byte
// offset, filling buf completely.
func ReadAtOffset(f *os.File, buf []byte, offset int64) error {
	_, err := f.ReadAt(buf, offset)
	return err
}

// FileSize returns the current size, in bytes, of the open file f.
func FileSize(f *os.File) (int64, error) {
	info, err := f.Stat()
	if err != nil {
		return 0, err
	}
	return info.Size(), nil
}
