package sffkit

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/ikagura/sffkit/metadata"
	"github.com/ikagura/sffkit/sff"
)

func (m *Manager) findDirectories(ctx context.Context, base string) (<-chan string, <-chan error, error) {
	out := make(chan string)
	errc := make(chan error, 1)
	go func() {
		defer close(out)
		defer close(errc)
		errc <- filepath.Walk(base, func(dir string, info os.FileInfo, err error) error {
			if err != nil {
				return err
			}

			// Ignore any hidden files or directories, otherwise we end up fighting with things like Spotlight, etc.
			if info.Name()[0] == '.' {
				if info.Mode().IsDir() {
					return filepath.SkipDir
				}
				return nil
			}

			// Ignore anything that isn't a directory
			if !info.Mode().IsDir() {
				return nil
			}

			select {
			case out <- dir:
			case <-ctx.Done():
				return errors.New("walk cancelled")
			}

			return nil
		})
	}()
	return out, errc, nil
}

// previewArchive extracts the best preview from an SFF archive: the
// portrait when one exists, otherwise the stage thumbnail. A parse
// failure means "no preview available" and is not an error.
func (m *Manager) previewArchive(file string) ([]byte, string, error) {
	data, err := os.ReadFile(file)
	if err != nil {
		return nil, "", err
	}

	var img image.Image
	kind := KindPortrait
	if img, err = sff.ExtractPortrait(data); err != nil {
		kind = KindStage
		if img, err = sff.ExtractStagePreview(data); err != nil {
			m.logger.Printf("No preview in \"%s\": %v\n", file, err)
			return nil, "", nil
		}
	}

	b := new(bytes.Buffer)
	if err := png.Encode(b, img); err != nil {
		return nil, "", err
	}
	return b.Bytes(), kind, nil
}

func (m *Manager) directoryWorker(ctx context.Context, in <-chan string) (<-chan error, error) {
	errc := make(chan error, 1)
	go func() {
		defer close(errc)
		for dir := range in {
			idx := metadata.New()

			entries, err := os.ReadDir(dir)
			if err != nil {
				errc <- err
				return
			}
			for _, entry := range entries {
				if !entry.Type().IsRegular() {
					continue
				}
				if !strings.EqualFold(filepath.Ext(entry.Name()), ".sff") {
					continue
				}
				file := filepath.Join(dir, entry.Name())

				crc, err := crcFile(file)
				if err != nil {
					errc <- err
					return
				}

				preview, err := m.db.Find(crcString(crc))
				if err != nil {
					errc <- err
					return
				}
				if preview == nil {
					var kind string
					preview, kind, err = m.previewArchive(file)
					if err != nil {
						errc <- err
						return
					}
					if preview == nil {
						continue
					}
					if err := m.db.Put(crcString(crc), kind, preview); err != nil {
						errc <- err
						return
					}
				}

				if err := idx.Set(crc, preview); err != nil {
					errc <- err
					return
				}
			}

			if idx.Length() > 0 {
				b, err := idx.MarshalBinary()
				if err != nil {
					errc <- err
					return
				}

				if err := os.WriteFile(filepath.Join(dir, metadata.Filename), b, 0644); err != nil {
					errc <- err
					return
				}
			}

			select {
			case <-ctx.Done():
				return
			default:
			}
		}
	}()
	return errc, nil
}

func waitForPipeline(errs ...<-chan error) error {
	errc := mergeErrors(errs...)
	for err := range errc {
		if err != nil {
			return err
		}
	}
	return nil
}

func mergeErrors(cs ...<-chan error) <-chan error {
	var wg sync.WaitGroup
	out := make(chan error, len(cs))
	wg.Add(len(cs))
	for _, c := range cs {
		go func(c <-chan error) {
			for n := range c {
				out <- n
			}
			wg.Done()
		}(c)
	}
	go func() {
		wg.Wait()
		close(out)
	}()
	return out
}

// Scan walks a content directory tree, extracts a preview from every
// SFF archive it finds, caches the results and writes a per-directory
// preview index next to the archives.
func (m *Manager) Scan(path string) error {
	dir, err := filepath.Abs(path)
	if err != nil {
		return err
	}

	ctx, cancelFunc := context.WithCancel(context.Background())
	defer cancelFunc()

	var errcList []<-chan error

	dirs, errc, err := m.findDirectories(ctx, dir)
	if err != nil {
		return err
	}
	errcList = append(errcList, errc)

	for i := 0; i < 10; i++ {
		errc, err := m.directoryWorker(ctx, dirs)
		if err != nil {
			return err
		}
		errcList = append(errcList, errc)
	}

	return waitForPipeline(errcList...)
}
