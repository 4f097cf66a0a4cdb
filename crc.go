package sffkit

import (
	"fmt"
	"hash/crc32"
	"io"
	"os"
)

func crcFile(file string) (uint32, error) {
	f, err := os.Open(file)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	h := crc32.NewIEEE()
	if _, err = io.Copy(h, f); err != nil {
		return 0, err
	}

	return h.Sum32(), nil
}

func crcString(crc uint32) string {
	return fmt.Sprintf("%08X", crc)
}
