// Package gdsparse drives the GDSII record stream through the library →
// structure → element → attribute → end-of-element state machine described
// in spec §4.3, allocating gdsmodel entities as it goes, expanding AREFs
// into flat SREFs, and optionally simplifying Boundary vertex lists.
//
// The parser carries no package-level state (spec §9's "global mutable
// state" redesign note): every knob is an explicit Options value, and every
// parse gets its own *parser.
package gdsparse

import (
	"fmt"
	"io"
	"os"

	"github.com/sirupsen/logrus"

	"github.com/0mhu/gds-render-go/gdserrors"
	"github.com/0mhu/gds-render-go/gdsmodel"
	"github.com/0mhu/gds-render-go/gdsrecord"
)

// Options configures a parse. The zero value is usable: Simplify defaults
// to false, MaxStreamBytes defaults to DefaultMaxStreamBytes, Logger
// defaults to logrus.StandardLogger().
type Options struct {
	// Simplify enables the Boundary vertex-list duplicate/closure collapse
	// described in spec §4.3. Paths and Boxes are never simplified.
	Simplify bool
	// MaxStreamBytes caps how much of a file ParseFile will read into
	// memory, guarding against a truncated or hostile byte_length field
	// driving an unbounded read — the same instinct as the teacher's
	// maxIdxBytes/maxGRIBBytes response caps, applied to a local file
	// instead of an HTTP body.
	MaxStreamBytes int64
	// Logger receives debug/warn lines for skipped records and truncated
	// fields. Defaults to logrus.StandardLogger() when nil.
	Logger *logrus.Logger
}

// DefaultMaxStreamBytes is applied when Options.MaxStreamBytes is zero.
const DefaultMaxStreamBytes = 512 << 20 // 512 MiB

func (o Options) logger() *logrus.Logger {
	if o.Logger != nil {
		return o.Logger
	}
	return logrus.StandardLogger()
}

func (o Options) maxBytes() int64 {
	if o.MaxStreamBytes > 0 {
		return o.MaxStreamBytes
	}
	return DefaultMaxStreamBytes
}

// Result is everything a successful parse produces: the libraries decoded
// from the stream (spec's "library list"), plus the second terminal pass's
// per-library statistics.
type Result struct {
	Libraries []*gdsmodel.Library
	Stats     map[*gdsmodel.Library]gdsmodel.LibraryStats
}

// state is the parser's position in the library → structure → element
// pushdown automaton (spec §4.3).
type state int

const (
	stateTop state = iota
	stateLib
	stateCell
	stateGraphic
	stateSRef
	stateARef
)

// arefBuilder is AREF's private, parser-scoped accumulator. It never enters
// the permanent model (spec §3): ENDEL expands it into plain CellRefs and
// discards it.
type arefBuilder struct {
	refName       string
	controlPoints [3]gdsmodel.Point
	cpCount       int
	flipped       bool
	angleDeg      float64
	magnification float64
	cols, rows    int16
}

type parser struct {
	opts Options
	log  *logrus.Logger

	libs []*gdsmodel.Library

	state state
	lib   *gdsmodel.Library
	cell  *gdsmodel.Cell

	// Exactly one of these is non-nil while state is stateGraphic/
	// stateSRef/stateARef.
	graphic *gdsmodel.Graphic
	sref    *gdsmodel.CellRef
	aref    *arefBuilder
}

// ParseFile reads and parses the GDSII stream at path.
func ParseFile(path string, opts Options) (*Result, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, gdserrors.New(gdserrors.KindIO, "gdsparse.ParseFile", err)
	}
	defer f.Close()

	limited := io.LimitReader(f, opts.maxBytes()+1)
	data, err := io.ReadAll(limited)
	if err != nil {
		return nil, gdserrors.New(gdserrors.KindIO, "gdsparse.ParseFile", err)
	}
	if int64(len(data)) > opts.maxBytes() {
		return nil, gdserrors.New(gdserrors.KindLimit, "gdsparse.ParseFile",
			fmt.Errorf("stream exceeds MaxStreamBytes (%d)", opts.maxBytes()))
	}
	return ParseBytes(data, opts)
}

// ParseBytes parses an in-memory GDSII stream. A stream may contain more
// than one BGNLIB...ENDLIB block; all are returned in Result.Libraries.
func ParseBytes(data []byte, opts Options) (*Result, error) {
	p := &parser{opts: opts, log: opts.logger(), state: stateTop}

	off := 0
	for off < len(data) {
		rec, next, ok, err := gdsrecord.ReadAt(data, off)
		if err != nil {
			return nil, err
		}
		if !ok {
			// Zero-length word: end-of-file padding at top level, fatal
			// corruption anywhere else (spec §4.1, §8).
			if p.state != stateTop {
				return nil, gdserrors.Malformed("gdsparse.ParseBytes",
					fmt.Errorf("zero-length record at offset %d with a frame still open", off))
			}
			break
		}
		if err := p.handle(rec); err != nil {
			return nil, err
		}
		off = next
	}

	if p.state != stateTop {
		return nil, gdserrors.Malformed("gdsparse.ParseBytes",
			fmt.Errorf("unexpected EOF: frame still open (state=%d)", p.state))
	}

	resolveReferences(p.libs)
	stats := make(map[*gdsmodel.Library]gdsmodel.LibraryStats, len(p.libs))
	for _, lib := range p.libs {
		stats[lib] = gdsmodel.ComputeStats(lib)
	}

	return &Result{Libraries: p.libs, Stats: stats}, nil
}

// resolveReferences is the first of the two clean-EOF terminal passes
// (spec §4.3): resolve every SREF name against its owning library's cell
// index. Unresolved names are left nil; that's a Result (spec §7), not an
// error.
func resolveReferences(libs []*gdsmodel.Library) {
	for _, lib := range libs {
		for _, cell := range lib.Cells {
			for _, ref := range cell.Children {
				ref.ResolvedCell = lib.CellByName(ref.RefName)
			}
		}
	}
}

func (p *parser) handle(rec gdsrecord.Record) error {
	switch rec.Type {
	case gdsrecord.RecHeader:
		return nil // version info, ignored regardless of state
	case gdsrecord.RecBgnLib:
		return p.onBgnLib(rec)
	case gdsrecord.RecLibName:
		return p.onLibName(rec)
	case gdsrecord.RecUnits:
		return p.onUnits(rec)
	case gdsrecord.RecBgnStr:
		return p.onBgnStr(rec)
	case gdsrecord.RecStrName:
		return p.onStrName(rec)
	case gdsrecord.RecBoundary:
		return p.onOpenGraphic(gdsmodel.KindBoundary)
	case gdsrecord.RecBox:
		return p.onOpenGraphic(gdsmodel.KindBox)
	case gdsrecord.RecPath:
		return p.onOpenGraphic(gdsmodel.KindPath)
	case gdsrecord.RecSRef:
		return p.onOpenSRef()
	case gdsrecord.RecARef:
		return p.onOpenARef()
	case gdsrecord.RecLayer:
		return p.onLayer(rec)
	case gdsrecord.RecDataType:
		return p.onDataType(rec)
	case gdsrecord.RecXY:
		return p.onXY(rec)
	case gdsrecord.RecColRow:
		return p.onColRow(rec)
	case gdsrecord.RecStrans:
		return p.onStrans(rec)
	case gdsrecord.RecMag:
		return p.onMag(rec)
	case gdsrecord.RecAngle:
		return p.onAngle(rec)
	case gdsrecord.RecWidth:
		return p.onWidth(rec)
	case gdsrecord.RecPathType:
		return p.onPathType(rec)
	case gdsrecord.RecSName:
		return p.onSName(rec)
	case gdsrecord.RecEndEl:
		return p.onEndEl()
	case gdsrecord.RecEndStr:
		return p.onEndStr()
	case gdsrecord.RecEndLib:
		return p.onEndLib()
	default:
		p.log.WithField("record", rec.Type.String()).Debug("gdsparse: skipping unrecognized record")
		return nil
	}
}

func protocolErr(op string, format string, args ...any) error {
	return gdserrors.Protocol(op, fmt.Errorf(format, args...))
}

func (p *parser) onBgnLib(rec gdsrecord.Record) error {
	if p.state != stateTop {
		return protocolErr("BGNLIB", "not allowed in state %d", p.state)
	}
	lib := gdsmodel.NewLibrary()
	if len(rec.Payload) >= 24 {
		mod, acc, err := gdsrecord.DecodeDates(rec.Payload)
		if err != nil {
			p.log.WithError(err).Warn("gdsparse: BGNLIB date sextet")
		} else {
			lib.ModTime = gdsmodel.DateTime(mod)
			lib.AccessTime = gdsmodel.DateTime(acc)
		}
	} else {
		p.log.Warn("gdsparse: BGNLIB payload too short for date sextet pair")
	}
	p.libs = append(p.libs, lib)
	p.lib = lib
	p.state = stateLib
	return nil
}

func (p *parser) onLibName(rec gdsrecord.Record) error {
	if p.state != stateLib {
		return protocolErr("LIBNAME", "not allowed in state %d", p.state)
	}
	p.lib.Name = p.truncatedString("LIBNAME", rec.Payload)
	return nil
}

func (p *parser) onUnits(rec gdsrecord.Record) error {
	if p.state != stateLib {
		return protocolErr("UNITS", "not allowed in state %d", p.state)
	}
	if len(rec.Payload) != 16 {
		p.log.WithField("len", len(rec.Payload)).Warn("gdsparse: UNITS payload is not 16 bytes, ignoring")
		return nil
	}
	_, err := gdsrecord.Real8(rec.Payload[0:8])
	if err != nil {
		return err
	}
	meters, err := gdsrecord.Real8(rec.Payload[8:16])
	if err != nil {
		return err
	}
	p.lib.UnitInMeters = meters
	return nil
}

func (p *parser) onBgnStr(rec gdsrecord.Record) error {
	if p.state != stateLib {
		return protocolErr("BGNSTR", "not allowed in state %d", p.state)
	}
	cell := p.lib.NewCell()
	if len(rec.Payload) >= 24 {
		mod, acc, err := gdsrecord.DecodeDates(rec.Payload)
		if err != nil {
			p.log.WithError(err).Warn("gdsparse: BGNSTR date sextet")
		} else {
			cell.ModTime = gdsmodel.DateTime(mod)
			cell.AccessTime = gdsmodel.DateTime(acc)
		}
	}
	p.cell = cell
	p.state = stateCell
	return nil
}

func (p *parser) onStrName(rec gdsrecord.Record) error {
	if p.state != stateCell {
		return protocolErr("STRNAME", "not allowed in state %d", p.state)
	}
	p.cell.Name = p.truncatedString("STRNAME", rec.Payload)
	p.lib.CellNames = append(p.lib.CellNames, p.cell.Name)
	return nil
}

func (p *parser) onOpenGraphic(kind gdsmodel.ElementKind) error {
	if p.state != stateCell {
		return protocolErr("graphic element", "not allowed in state %d", p.state)
	}
	p.graphic = p.cell.AddGraphic(kind)
	p.state = stateGraphic
	return nil
}

func (p *parser) onOpenSRef() error {
	if p.state != stateCell {
		return protocolErr("SREF", "not allowed in state %d", p.state)
	}
	p.sref = p.cell.AddChild("")
	p.state = stateSRef
	return nil
}

func (p *parser) onOpenARef() error {
	if p.state != stateCell {
		return protocolErr("AREF", "not allowed in state %d", p.state)
	}
	p.aref = &arefBuilder{magnification: gdsmodel.DefaultMagnification, angleDeg: gdsmodel.DefaultAngleDeg}
	p.state = stateARef
	return nil
}

func (p *parser) onLayer(rec gdsrecord.Record) error {
	if p.state != stateGraphic {
		return protocolErr("LAYER", "not allowed in state %d", p.state)
	}
	v, err := gdsrecord.I16(rec.Payload)
	if err != nil {
		return err
	}
	if v < 0 {
		p.log.WithField("layer", v).Warn("gdsparse: negative layer number")
	}
	p.graphic.Layer = v
	return nil
}

func (p *parser) onDataType(rec gdsrecord.Record) error {
	if p.state != stateGraphic {
		return protocolErr("DATATYPE", "not allowed in state %d", p.state)
	}
	v, err := gdsrecord.U16(rec.Payload)
	if err != nil {
		return err
	}
	p.graphic.DataType = v
	return nil
}

func (p *parser) onXY(rec gdsrecord.Record) error {
	switch p.state {
	case stateGraphic:
		if len(rec.Payload)%8 != 0 {
			return gdserrors.Malformed("XY", fmt.Errorf("payload length %d is not a multiple of 8", len(rec.Payload)))
		}
		n := len(rec.Payload) / 8
		verts := make([]gdsmodel.Point, 0, n)
		for i := 0; i < n; i++ {
			x, err := gdsrecord.I32(rec.Payload[i*8 : i*8+4])
			if err != nil {
				return err
			}
			y, err := gdsrecord.I32(rec.Payload[i*8+4 : i*8+8])
			if err != nil {
				return err
			}
			verts = append(verts, gdsmodel.Point{X: x, Y: y})
		}
		p.graphic.Vertices = append(p.graphic.Vertices, verts...)
		return nil
	case stateSRef:
		if len(rec.Payload) != 8 {
			return gdserrors.Malformed("XY", fmt.Errorf("SREF origin payload must be 8 bytes, got %d", len(rec.Payload)))
		}
		x, err := gdsrecord.I32(rec.Payload[0:4])
		if err != nil {
			return err
		}
		y, err := gdsrecord.I32(rec.Payload[4:8])
		if err != nil {
			return err
		}
		p.sref.Origin = gdsmodel.Point{X: x, Y: y}
		return nil
	case stateARef:
		if len(rec.Payload) != 24 {
			return gdserrors.Malformed("XY", fmt.Errorf("AREF control points payload must be 24 bytes, got %d", len(rec.Payload)))
		}
		for i := 0; i < 3; i++ {
			x, err := gdsrecord.I32(rec.Payload[i*8 : i*8+4])
			if err != nil {
				return err
			}
			y, err := gdsrecord.I32(rec.Payload[i*8+4 : i*8+8])
			if err != nil {
				return err
			}
			p.aref.controlPoints[i] = gdsmodel.Point{X: x, Y: y}
		}
		p.aref.cpCount = 3
		return nil
	default:
		return protocolErr("XY", "not allowed in state %d", p.state)
	}
}

func (p *parser) onColRow(rec gdsrecord.Record) error {
	if p.state != stateARef {
		return protocolErr("COLROW", "not allowed in state %d", p.state)
	}
	if len(rec.Payload) != 4 {
		return gdserrors.Malformed("COLROW", fmt.Errorf("payload must be 4 bytes, got %d", len(rec.Payload)))
	}
	cols, err := gdsrecord.I16(rec.Payload[0:2])
	if err != nil {
		return err
	}
	rows, err := gdsrecord.I16(rec.Payload[2:4])
	if err != nil {
		return err
	}
	p.aref.cols = cols
	p.aref.rows = rows
	return nil
}

func (p *parser) onStrans(rec gdsrecord.Record) error {
	if len(rec.Payload) < 1 {
		return gdserrors.Malformed("STRANS", fmt.Errorf("empty payload"))
	}
	flipped := rec.Payload[0]&0x80 != 0
	switch p.state {
	case stateSRef:
		p.sref.Flipped = flipped
		return nil
	case stateARef:
		p.aref.flipped = flipped
		return nil
	default:
		return protocolErr("STRANS", "not allowed in state %d", p.state)
	}
}

func (p *parser) onMag(rec gdsrecord.Record) error {
	if len(rec.Payload) != 8 {
		return gdserrors.Malformed("MAG", fmt.Errorf("payload must be 8 bytes, got %d", len(rec.Payload)))
	}
	v, err := gdsrecord.Real8(rec.Payload)
	if err != nil {
		return err
	}
	switch p.state {
	case stateSRef:
		p.sref.Magnification = v
		return nil
	case stateARef:
		p.aref.magnification = v
		return nil
	default:
		return protocolErr("MAG", "not allowed in state %d", p.state)
	}
}

func (p *parser) onAngle(rec gdsrecord.Record) error {
	if len(rec.Payload) != 8 {
		return gdserrors.Malformed("ANGLE", fmt.Errorf("payload must be 8 bytes, got %d", len(rec.Payload)))
	}
	v, err := gdsrecord.Real8(rec.Payload)
	if err != nil {
		return err
	}
	switch p.state {
	case stateSRef:
		p.sref.AngleDeg = v
		return nil
	case stateARef:
		p.aref.angleDeg = v
		return nil
	default:
		return protocolErr("ANGLE", "not allowed in state %d", p.state)
	}
}

func (p *parser) onWidth(rec gdsrecord.Record) error {
	if p.state != stateGraphic || p.graphic.Kind != gdsmodel.KindPath {
		return protocolErr("WIDTH", "only allowed on an open Path element")
	}
	v, err := gdsrecord.I32(rec.Payload)
	if err != nil {
		return err
	}
	p.graphic.Width = v
	return nil
}

func (p *parser) onPathType(rec gdsrecord.Record) error {
	if p.state != stateGraphic || p.graphic.Kind != gdsmodel.KindPath {
		return protocolErr("PATHTYPE", "only allowed on an open Path element")
	}
	v, err := gdsrecord.U16(rec.Payload)
	if err != nil {
		return err
	}
	switch v {
	case 0:
		p.graphic.CapType = gdsmodel.CapFlush
	case 1:
		p.graphic.CapType = gdsmodel.CapRound
	case 2:
		p.graphic.CapType = gdsmodel.CapSquare
	default:
		p.log.WithField("pathtype", v).Warn("gdsparse: unsupported PATHTYPE, defaulting to flush")
		p.graphic.CapType = gdsmodel.CapFlush
	}
	return nil
}

func (p *parser) onSName(rec gdsrecord.Record) error {
	name := p.truncatedString("SNAME", rec.Payload)
	switch p.state {
	case stateSRef:
		p.sref.RefName = name
		return nil
	case stateARef:
		p.aref.refName = name
		return nil
	default:
		return protocolErr("SNAME", "not allowed in state %d", p.state)
	}
}

func (p *parser) onEndEl() error {
	switch p.state {
	case stateGraphic:
		if p.opts.Simplify && p.graphic.Kind == gdsmodel.KindBoundary {
			p.graphic.Vertices = simplifyBoundary(p.graphic.Vertices)
		}
		p.graphic = nil
	case stateSRef:
		p.sref = nil
	case stateARef:
		p.expandAref()
		p.aref = nil
	default:
		return protocolErr("ENDEL", "not allowed in state %d", p.state)
	}
	p.state = stateCell
	return nil
}

// expandAref expands the open AREF into rows*cols SREFs on the current
// cell, per spec §4.3/§3. If either dimension is zero, it logs and drops
// the reference entirely.
func (p *parser) expandAref() {
	a := p.aref
	if a.cols == 0 || a.rows == 0 {
		p.log.WithFields(logrus.Fields{"cols": a.cols, "rows": a.rows}).
			Warn("gdsparse: AREF with a zero dimension, dropping")
		return
	}
	origin := a.controlPoints[0]
	colEnd := a.controlPoints[1]
	rowEnd := a.controlPoints[2]

	colStep := gdsmodel.Point{
		X: (colEnd.X - origin.X) / int32(a.cols),
		Y: (colEnd.Y - origin.Y) / int32(a.cols),
	}
	rowStep := gdsmodel.Point{
		X: (rowEnd.X - origin.X) / int32(a.rows),
		Y: (rowEnd.Y - origin.Y) / int32(a.rows),
	}

	for i := int16(0); i < a.rows; i++ {
		for j := int16(0); j < a.cols; j++ {
			ref := p.cell.AddChild(a.refName)
			ref.Origin = gdsmodel.Point{
				X: origin.X + int32(j)*colStep.X + int32(i)*rowStep.X,
				Y: origin.Y + int32(j)*colStep.Y + int32(i)*rowStep.Y,
			}
			ref.Flipped = a.flipped
			ref.AngleDeg = a.angleDeg
			ref.Magnification = a.magnification
		}
	}
}

func (p *parser) onEndStr() error {
	if p.state != stateCell {
		return protocolErr("ENDSTR", "not allowed in state %d (an element is still open)", p.state)
	}
	p.cell = nil
	p.state = stateLib
	return nil
}

func (p *parser) onEndLib() error {
	if p.state != stateLib {
		return protocolErr("ENDLIB", "not allowed in state %d (a structure is still open)", p.state)
	}
	p.lib = nil
	p.state = stateTop
	return nil
}

// truncatedString decodes a NUL-padded ASCII field, truncating to
// gdsmodel.MaxNameLength bytes and logging if the source is longer (spec
// §4.3: "Name exactly 99 bytes: accepted. 100 bytes: truncated and
// logged.").
func (p *parser) truncatedString(op string, payload []byte) string {
	s := string(payload)
	if i := indexByte(s, 0); i >= 0 {
		s = s[:i]
	}
	if len(s) > gdsmodel.MaxNameLength {
		p.log.WithFields(logrus.Fields{"op": op, "len": len(s)}).
			Warn("gdsparse: name exceeds 99 bytes, truncating")
		s = s[:gdsmodel.MaxNameLength]
	}
	return s
}

func indexByte(s string, b byte) int {
	for i := 0; i < len(s); i++ {
		if s[i] == b {
			return i
		}
	}
	return -1
}

// simplifyBoundary drops any vertex exactly equal to its immediate
// predecessor, then drops a final vertex equal to the first (the GDSII
// closure convention), per spec §4.3.
func simplifyBoundary(verts []gdsmodel.Point) []gdsmodel.Point {
	if len(verts) == 0 {
		return verts
	}
	out := make([]gdsmodel.Point, 0, len(verts))
	for _, v := range verts {
		if len(out) > 0 && out[len(out)-1] == v {
			continue
		}
		out = append(out, v)
	}
	if len(out) > 1 && out[0] == out[len(out)-1] {
		out = out[:len(out)-1]
	}
	return out
}
