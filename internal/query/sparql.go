package query

import (
	"encoding/csv"
	"fmt"
	"io"
	"strings"

	"github.com/openmuseum/gallerist/internal/entity"
)

// Entity URL forms emitted by the Wikidata SPARQL endpoint's CSV export.
var entityURLPrefixes = []string{
	"http://www.wikidata.org/entity/",
	"https://www.wikidata.org/entity/",
}

// ParseSPARQLCSV reads a single-column SPARQL CSV export (header "item",
// one entity URL per row) and returns the QIDs.
func ParseSPARQLCSV(r io.Reader) ([]uint64, error) {
	cr := csv.NewReader(r)
	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("read sparql csv header: %w", err)
	}
	if len(header) != 1 || header[0] != "item" {
		return nil, fmt.Errorf("unexpected sparql csv header %q, want [item]", header)
	}
	var qids []uint64
	for {
		row, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read sparql csv row: %w", err)
		}
		qid, err := qidFromEntityURL(row[0])
		if err != nil {
			return nil, err
		}
		qids = append(qids, qid)
	}
	return qids, nil
}

func qidFromEntityURL(url string) (uint64, error) {
	for _, prefix := range entityURLPrefixes {
		if rest, ok := strings.CutPrefix(url, prefix); ok {
			qid, err := entity.ParseQID(rest)
			if err != nil {
				return 0, fmt.Errorf("entity url %q: %w", url, err)
			}
			return qid, nil
		}
	}
	return 0, fmt.Errorf("entity url %q: unrecognized prefix", url)
}
