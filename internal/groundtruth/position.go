// Package groundtruth reads the emulator's position snapshot, the only
// trusted source for whether a turn moved the player.
package groundtruth

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
)

// #region position

// Position is where the player is according to game memory.
type Position struct {
	X        int  `json:"x"`
	Y        int  `json:"y"`
	InBattle bool `json:"in_battle"`
	MapGroup int  `json:"map_group"`
	MapNum   int  `json:"map_num"`
}

func (p Position) String() string {
	s := fmt.Sprintf("map %d.%d (%d,%d)", p.MapGroup, p.MapNum, p.X, p.Y)
	if p.InBattle {
		s += " in battle"
	}
	return s
}

// SamePlace reports whether a and b are both known and on the same tile of
// the same map. The battle flag is ignored.
func SamePlace(a, b *Position) bool {
	return a != nil && b != nil &&
		a.MapGroup == b.MapGroup && a.MapNum == b.MapNum && a.X == b.X && a.Y == b.Y
}

// #endregion position

// #region oracle

// Oracle returns the current position, or nil when it is unknown.
type Oracle interface {
	Position() *Position
}

// OracleFunc adapts a function to Oracle.
type OracleFunc func() *Position

func (f OracleFunc) Position() *Position { return f() }

// #endregion oracle

// #region decode

type snapshot struct {
	X        *int   `json:"x"`
	Y        *int   `json:"y"`
	InBattle bool   `json:"in_battle"`
	MapGroup int    `json:"map_group"`
	MapNum   int    `json:"map_num"`
	Error    string `json:"error"`
}

// Decode parses a snapshot file body. A snapshot carrying "error" or missing
// coordinates is rejected.
func Decode(data []byte) (*Position, error) {
	var s snapshot
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("decode snapshot: %w", err)
	}
	if s.Error != "" {
		return nil, fmt.Errorf("snapshot reported: %s", s.Error)
	}
	if s.X == nil || s.Y == nil {
		return nil, errors.New("snapshot missing coordinates")
	}
	return &Position{
		X:        *s.X,
		Y:        *s.Y,
		InBattle: s.InBattle,
		MapGroup: s.MapGroup,
		MapNum:   s.MapNum,
	}, nil
}

// ReadFile reads and decodes the snapshot at path.
func ReadFile(path string) (*Position, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read snapshot: %w", err)
	}
	return Decode(data)
}

// #endregion decode

// #region file-oracle

// FileOracle reads the snapshot file on every call.
type FileOracle struct {
	path string
}

func NewFileOracle(path string) *FileOracle {
	return &FileOracle{path: path}
}

func (f *FileOracle) Position() *Position {
	p, err := ReadFile(f.path)
	if err != nil {
		return nil
	}
	return p
}

// #endregion file-oracle
