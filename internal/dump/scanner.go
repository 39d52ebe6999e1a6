package dump

import "bytes"

// entityPrefix is the exact byte sequence opening an item record in the
// Wikidata JSON dump serialization. Matching it verbatim lets the indexer
// skip a JSON parse on every line of a multi-gigabyte file. The tradeoff is
// a hard coupling to the dump's field order: if Wikimedia ever reorders
// "type" and "id" or introduces whitespace, ScanLine stops matching and this
// one function must be updated. Nothing else in the codebase depends on the
// serialization order.
var entityPrefix = []byte(`{"type":"item","id":"Q`)

// ScanLine extracts the numeric entity identifier from one line of a
// decompressed dump member without parsing JSON. ok is false for lines that
// are not item records (array brackets, properties, lexemes).
func ScanLine(line []byte) (qid uint64, ok bool) {
	if !bytes.HasPrefix(line, entityPrefix) {
		return 0, false
	}
	digits := 0
	for _, c := range line[len(entityPrefix):] {
		if c < '0' || c > '9' {
			break
		}
		qid = qid*10 + uint64(c-'0')
		digits++
	}
	if digits == 0 {
		return 0, false
	}
	return qid, true
}
