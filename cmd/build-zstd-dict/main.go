package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"github.com/livemap/client/storage"
)

func main() {
	recorder := flag.String("dir", "/tmp/livemap-record", "the recorder directory")
	output := flag.String("out", "/tmp/livemap-zstd-frames", "the samples directory")
	flag.Parse()

	err := buildFrames(*recorder, *output)
	if err != nil {
		panic(err)
	}
}

// zstd --train /tmp/livemap-zstd-frames/* -o frames.zstd
func buildFrames(recorder, dir string) error {
	store, err := storage.NewBadgerStore(recorder)
	if err != nil {
		return err
	}
	defer store.Close()

	err = os.MkdirAll(dir, 0755)
	if err != nil {
		return err
	}
	sessions, err := store.ListSessions()
	if err != nil {
		return err
	}
	for _, s := range sessions {
		var offset uint64
		for {
			frames, err := store.ReadFrames(s.Id, offset, storage.MaxFramesPerRead)
			if err != nil {
				return err
			}
			for _, f := range frames {
				name := filepath.Join(dir, fmt.Sprintf("FRAME-%s-%d", s.Id, f.Sequence))
				err := os.WriteFile(name, f.Payload, 0644)
				if err != nil {
					return err
				}
			}
			if len(frames) < storage.MaxFramesPerRead {
				break
			}
			offset = frames[len(frames)-1].Sequence + 1
		}
	}
	return nil
}
