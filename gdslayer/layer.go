// Package gdslayer is the per-layer style table (C7): an ordered,
// unique-by-number collection of LayerInfo plus its CSV persistence
// grammar (spec §4.7).
//
// Settings is safe for concurrent read access during a render; reconfiguring
// it (Append/Clear/RemoveByNumber/LoadCSV) takes an internal mutex so a
// renderer holding a Snapshot from before a reconfiguration keeps seeing the
// old list, never a half-updated one (spec §5: "shared-resource policy").
package gdslayer

import (
	"bufio"
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/0mhu/gds-render-go/gdserrors"
)

// RGBA is a layer's display color, channels in [0, 1] matching the CSV
// grammar's decimal fields.
type RGBA struct {
	R, G, B, A float64
}

// LayerInfo is one entry of the layer table. Stack position is implicit in
// list order, never stored as a field (spec §3: "stack_position is implicit
// in list order, not in the field").
type LayerInfo struct {
	Number int
	Name   string
	Color  RGBA
	Render bool
}

// Settings is the ordered, number-keyed layer table. The zero value is an
// empty, ready-to-use table.
type Settings struct {
	mu     sync.RWMutex
	layers []LayerInfo
}

// New returns an empty Settings.
func New() *Settings { return &Settings{} }

// Append adds info, replacing any existing entry with the same layer
// number in place (preserving its stack position) or appending at the end
// otherwise.
func (s *Settings) Append(info LayerInfo) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, l := range s.layers {
		if l.Number == info.Number {
			s.layers[i] = info
			return
		}
	}
	s.layers = append(s.layers, info)
}

// Clear empties the table.
func (s *Settings) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.layers = nil
}

// RemoveByNumber removes the entry for the given layer number, if present.
func (s *Settings) RemoveByNumber(number int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, l := range s.layers {
		if l.Number == number {
			s.layers = append(s.layers[:i:i], s.layers[i+1:]...)
			return
		}
	}
}

// List returns a copy of the table in stack order. Callers may not rely on
// further mutation of one Settings being reflected in a previously
// returned List — take a fresh List/Snapshot after each reconfiguration.
func (s *Settings) List() []LayerInfo {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]LayerInfo, len(s.layers))
	copy(out, s.layers)
	return out
}

// Lookup returns the entry for number and whether it was found.
func (s *Settings) Lookup(number int) (LayerInfo, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, l := range s.layers {
		if l.Number == number {
			return l, true
		}
	}
	return LayerInfo{}, false
}

// Snapshot is an immutable, point-in-time copy of the table a renderer can
// hold for the duration of one render without an external reconfiguration
// invalidating it mid-pass.
type Snapshot struct {
	layers []LayerInfo
}

// Snapshot captures the current table.
func (s *Settings) Snapshot() Snapshot {
	return Snapshot{layers: s.List()}
}

// Layers returns the snapshot's entries in stack order.
func (snap Snapshot) Layers() []LayerInfo { return snap.layers }

// Lookup returns the entry for number within the snapshot, falling back to
// FallbackColor for layers with no explicit entry so a renderer never has
// to special-case "layer not in the CSV".
func (snap Snapshot) Lookup(number int) LayerInfo {
	for _, l := range snap.layers {
		if l.Number == number {
			return l
		}
	}
	return LayerInfo{Number: number, Name: fmt.Sprintf("layer%d", number), Color: FallbackColor(number), Render: true}
}

// palette is the built-in default/fallback color table consulted when a
// layer has no CSV entry, cycled by layer number. The original's
// color-palette.c loads an arbitrary palette from a GResource bundle at
// runtime; that asset isn't part of this module, so a small fixed literal
// palette stands in for it, cycled the same way (index modulo table
// length) as color_palette_get_color's index lookup.
var palette = []RGBA{
	{R: 0.89, G: 0.10, B: 0.11, A: 1.0},
	{R: 0.22, G: 0.49, B: 0.72, A: 1.0},
	{R: 0.30, G: 0.69, B: 0.29, A: 1.0},
	{R: 0.60, G: 0.31, B: 0.64, A: 1.0},
	{R: 1.00, G: 0.50, B: 0.00, A: 1.0},
	{R: 0.65, G: 0.34, B: 0.16, A: 1.0},
	{R: 0.97, G: 0.51, B: 0.75, A: 1.0},
	{R: 0.60, G: 0.60, B: 0.60, A: 1.0},
}

// FallbackColor returns a deterministic palette color for a layer with no
// explicit style entry.
func FallbackColor(layerNumber int) RGBA {
	idx := layerNumber % len(palette)
	if idx < 0 {
		idx += len(palette)
	}
	return palette[idx]
}

// LoadCSV replaces the table with the contents of r, clearing any existing
// entries first (spec §4.7: "load-from-CSV (clears first)"). Lines that
// don't match the grammar are logged and skipped; a short read or a field
// that fails to parse is treated the same way — load is otherwise
// tolerant, per spec.
func (s *Settings) LoadCSV(r io.Reader, log *logrus.Logger) error {
	if log == nil {
		log = logrus.StandardLogger()
	}
	reader := csv.NewReader(bufio.NewReader(r))
	reader.FieldsPerRecord = 7
	reader.TrimLeadingSpace = true

	var fresh []LayerInfo
	lineNo := 0
	for {
		lineNo++
		fields, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			log.WithFields(logrus.Fields{"line": lineNo, "error": err}).Warn("gdslayer: skipping malformed CSV line")
			continue
		}
		info, err := parseRow(fields)
		if err != nil {
			log.WithFields(logrus.Fields{"line": lineNo, "error": err}).Warn("gdslayer: skipping malformed CSV line")
			continue
		}
		fresh = append(fresh, info)
	}

	s.mu.Lock()
	s.layers = fresh
	s.mu.Unlock()
	return nil
}

func parseRow(fields []string) (LayerInfo, error) {
	num, err := strconv.Atoi(fields[0])
	if err != nil {
		return LayerInfo{}, fmt.Errorf("layer number: %w", err)
	}
	r, err := strconv.ParseFloat(fields[1], 64)
	if err != nil {
		return LayerInfo{}, fmt.Errorf("red: %w", err)
	}
	g, err := strconv.ParseFloat(fields[2], 64)
	if err != nil {
		return LayerInfo{}, fmt.Errorf("green: %w", err)
	}
	b, err := strconv.ParseFloat(fields[3], 64)
	if err != nil {
		return LayerInfo{}, fmt.Errorf("blue: %w", err)
	}
	a, err := strconv.ParseFloat(fields[4], 64)
	if err != nil {
		return LayerInfo{}, fmt.Errorf("alpha: %w", err)
	}
	renderFlag, err := strconv.Atoi(fields[5])
	if err != nil || (renderFlag != 0 && renderFlag != 1) {
		return LayerInfo{}, fmt.Errorf("render flag must be 0 or 1, got %q", fields[5])
	}
	return LayerInfo{
		Number: num,
		Name:   fields[6],
		Color:  RGBA{R: r, G: g, B: b, A: a},
		Render: renderFlag == 1,
	}, nil
}

// SaveCSV writes the table to w in stack order, one record per line (spec
// §4.7: "Writer emits lines in render order").
func (s *Settings) SaveCSV(w io.Writer) error {
	layers := s.List()
	writer := csv.NewWriter(w)
	writer.UseCRLF = false
	for _, l := range layers {
		renderFlag := "0"
		if l.Render {
			renderFlag = "1"
		}
		record := []string{
			strconv.Itoa(l.Number),
			strconv.FormatFloat(l.Color.R, 'f', -1, 64),
			strconv.FormatFloat(l.Color.G, 'f', -1, 64),
			strconv.FormatFloat(l.Color.B, 'f', -1, 64),
			strconv.FormatFloat(l.Color.A, 'f', -1, 64),
			renderFlag,
			l.Name,
		}
		if err := writer.Write(record); err != nil {
			return gdserrors.New(gdserrors.KindIO, "gdslayer.SaveCSV", err)
		}
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		return gdserrors.New(gdserrors.KindIO, "gdslayer.SaveCSV", err)
	}
	return nil
}
