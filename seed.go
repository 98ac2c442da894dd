/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package main

import (
	"fmt"
	"os"

	"github.com/Seednode/turnroom/rooms"
	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"
)

// roomsFile is the --rooms-file format:
//
//	rooms:
//	  - name: lobby
//	  - name: tournament
type roomsFile struct {
	Rooms []struct {
		Name string `yaml:"name"`
	} `yaml:"rooms"`
}

func loadPinnedRooms(path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read rooms file: %w", err)
	}

	var f roomsFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse rooms file: %w", err)
	}

	names := make([]string, 0, len(f.Rooms))
	seen := make(map[string]bool, len(f.Rooms))
	for _, r := range f.Rooms {
		if seen[r.Name] {
			continue
		}
		seen[r.Name] = true
		names = append(names, r.Name)
	}

	return names, nil
}

// seedRooms creates the named rooms and pins them so they are never reaped.
func seedRooms(reg *rooms.Registry, names []string) error {
	for _, name := range names {
		if _, _, err := reg.Ensure(name); err != nil {
			return fmt.Errorf("failed to create pinned room: %w", err)
		}
		if err := reg.Pin(name); err != nil {
			return err
		}

		log.Debug().Str("room", name).Msg("pinned room")
	}

	return nil
}
