// Package entity projects the fields the gallery pipeline needs out of raw
// Wikidata entity JSON. The projection is derived on demand; only the raw
// JSON is ever persisted.
package entity

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/ohler55/ojg/jp"
	"github.com/ohler55/ojg/oj"
)

// ErrIDMismatch means a parsed entity's embedded identifier differs from the
// QID it was retrieved for. This signals index or cache corruption; such an
// entity must never be cached.
var ErrIDMismatch = errors.New("entity: embedded id does not match requested QID")

// centimetreUnit is the unit entity a dimension claim must carry; quantities
// in other units are ignored rather than converted.
const centimetreUnit = "http://www.wikidata.org/entity/Q174728"

// Entity is the parsed projection of one Wikidata item.
type Entity struct {
	QID         uint64
	Label       string
	Description string
	Image       string   // P18 image filename, "" when absent
	WidthCM     float64  // P2049, 0 when absent or not in centimetres
	HeightCM    float64  // P2048
	Creator     uint64   // P170, 0 when absent
	Collection  uint64   // P195
	Materials   []uint64 // P186
}

var (
	idPath         = jp.MustParseString(`$.id`)
	labelPath      = jp.MustParseString(`$.labels.en.value`)
	descPath       = jp.MustParseString(`$.descriptions.en.value`)
	imagePath      = claimPath("P18")
	creatorPath    = claimPath("P170")
	materialPath   = claimPath("P186")
	collectionPath = claimPath("P195")
	heightPath     = claimPath("P2048")
	widthPath      = claimPath("P2049")
)

func claimPath(prop string) jp.Expr {
	return jp.MustParseString(`$.claims.` + prop + `[*].mainsnak.datavalue.value`)
}

// Parse decodes raw entity JSON and projects the pipeline's fields.
func Parse(raw []byte) (*Entity, error) {
	doc, err := oj.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("parse entity json: %w", err)
	}
	id, _ := firstString(idPath, doc)
	qid, err := ParseQID(id)
	if err != nil {
		return nil, fmt.Errorf("entity id %q: %w", id, err)
	}

	e := &Entity{QID: qid}
	e.Label, _ = firstString(labelPath, doc)
	e.Description, _ = firstString(descPath, doc)
	e.Image, _ = firstString(imagePath, doc)
	e.WidthCM = firstCentimetres(widthPath, doc)
	e.HeightCM = firstCentimetres(heightPath, doc)
	e.Creator = firstEntityRef(creatorPath, doc)
	e.Collection = firstEntityRef(collectionPath, doc)
	for _, v := range materialPath.Get(doc) {
		if q, ok := entityRef(v); ok {
			e.Materials = append(e.Materials, q)
		}
	}
	return e, nil
}

// Validate parses raw and checks that the embedded identifier equals qid,
// returning ErrIDMismatch otherwise. Retrieval must call this before any
// cache insert.
func Validate(raw []byte, qid uint64) (*Entity, error) {
	e, err := Parse(raw)
	if err != nil {
		return nil, err
	}
	if e.QID != qid {
		return nil, fmt.Errorf("requested Q%d, found Q%d: %w", qid, e.QID, ErrIDMismatch)
	}
	return e, nil
}

// Displayable reports whether the entity can hang on a gallery wall: it has
// an image and strictly positive width and height in centimetres.
func (e *Entity) Displayable() bool {
	return e.Image != "" && e.WidthCM > 0 && e.HeightCM > 0
}

// Dependencies returns the QIDs of entities referenced by the claims the
// pipeline displays: creator, collection, and each material.
func (e *Entity) Dependencies() []uint64 {
	var deps []uint64
	if e.Creator != 0 {
		deps = append(deps, e.Creator)
	}
	if e.Collection != 0 {
		deps = append(deps, e.Collection)
	}
	deps = append(deps, e.Materials...)
	return deps
}

// ParseQID converts an identifier like "Q42" to its numeric form.
func ParseQID(id string) (uint64, error) {
	rest, ok := strings.CutPrefix(id, "Q")
	if !ok || rest == "" {
		return 0, fmt.Errorf("not a QID")
	}
	qid, err := strconv.ParseUint(rest, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("not a QID: %w", err)
	}
	return qid, nil
}

func firstString(x jp.Expr, doc any) (string, bool) {
	for _, v := range x.Get(doc) {
		if s, ok := v.(string); ok {
			return s, true
		}
	}
	return "", false
}

// firstCentimetres returns the first quantity claim expressed in centimetres
// with a strictly positive amount, or 0.
func firstCentimetres(x jp.Expr, doc any) float64 {
	for _, v := range x.Get(doc) {
		m, ok := v.(map[string]any)
		if !ok {
			continue
		}
		if unit, _ := m["unit"].(string); unit != centimetreUnit {
			continue
		}
		amount, _ := m["amount"].(string)
		f, err := strconv.ParseFloat(strings.TrimPrefix(amount, "+"), 64)
		if err != nil || f <= 0 {
			continue
		}
		return f
	}
	return 0
}

func firstEntityRef(x jp.Expr, doc any) uint64 {
	for _, v := range x.Get(doc) {
		if q, ok := entityRef(v); ok {
			return q
		}
	}
	return 0
}

func entityRef(v any) (uint64, bool) {
	m, ok := v.(map[string]any)
	if !ok {
		return 0, false
	}
	switch n := m["numeric-id"].(type) {
	case int64:
		if n > 0 {
			return uint64(n), true
		}
	case float64:
		if n > 0 {
			return uint64(n), true
		}
	}
	if id, ok := m["id"].(string); ok {
		if q, err := ParseQID(id); err == nil {
			return q, true
		}
	}
	return 0, false
}
