package abs

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

// Dataflow is a named dataset exposed by the ABS Data API.
type Dataflow struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Version  string `json:"version"`
	AgencyID string `json:"agencyID"`
}

// Code is a single entry of a codelist.
type Code struct {
	CodelistID  string `json:"codelist_id"`
	ID          string `json:"code"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

// Dimension is a categorical axis of a dataflow, ordered by position.
type Dimension struct {
	ID       string `json:"id"`
	Position int    `json:"position"`
	Codelist string `json:"codelist,omitempty"`
	Concept  string `json:"concept,omitempty"`
}

// Structure holds the parsed dimensions and codelists of a dataflow.
type Structure struct {
	DataflowID string
	Dimensions []Dimension
	Codelists  map[string][]Code
}

// jsonStructureDocument mirrors the SDMX structure+json response envelope.
type jsonStructureDocument struct {
	Data struct {
		Dataflows      []jsonDataflow      `json:"dataflows"`
		Codelists      []jsonCodelist      `json:"codelists"`
		DataStructures []jsonDataStructure `json:"dataStructures"`
	} `json:"data"`
}

type jsonDataflow struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Version  string `json:"version"`
	AgencyID string `json:"agencyID"`
}

type jsonCodelist struct {
	ID    string `json:"id"`
	Codes []struct {
		ID          string `json:"id"`
		Name        string `json:"name"`
		Description string `json:"description"`
	} `json:"codes"`
}

type jsonDataStructure struct {
	DataStructureComponents struct {
		DimensionList struct {
			Dimensions []jsonDimension `json:"dimensions"`
		} `json:"dimensionList"`
	} `json:"dataStructureComponents"`
}

type jsonDimension struct {
	ID                  string `json:"id"`
	Position            int    `json:"position"`
	ConceptIdentity     string `json:"conceptIdentity"`
	LocalRepresentation struct {
		Enumeration string `json:"enumeration"`
	} `json:"localRepresentation"`
}

func parseDataflows(data []byte) ([]Dataflow, error) {
	var doc jsonStructureDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to unmarshal dataflow response: %w", err)
	}

	dataflows := make([]Dataflow, 0, len(doc.Data.Dataflows))
	for _, df := range doc.Data.Dataflows {
		dataflows = append(dataflows, Dataflow(df))
	}
	return dataflows, nil
}

func parseCodelists(data []byte) (map[string][]Code, error) {
	var doc jsonStructureDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to unmarshal codelist response: %w", err)
	}

	codelists := make(map[string][]Code, len(doc.Data.Codelists))
	for _, cl := range doc.Data.Codelists {
		codes := make([]Code, 0, len(cl.Codes))
		for _, c := range cl.Codes {
			codes = append(codes, Code{
				CodelistID:  cl.ID,
				ID:          c.ID,
				Name:        c.Name,
				Description: c.Description,
			})
		}
		codelists[cl.ID] = codes
	}
	return codelists, nil
}

func parseStructure(dataflowID string, data []byte) (*Structure, error) {
	var doc jsonStructureDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to unmarshal structure response: %w", err)
	}

	var dimensions []Dimension
	for _, ds := range doc.Data.DataStructures {
		for _, dim := range ds.DataStructureComponents.DimensionList.Dimensions {
			dimensions = append(dimensions, Dimension{
				ID:       dim.ID,
				Position: dim.Position,
				Codelist: codelistIDFromRef(dim.LocalRepresentation.Enumeration),
				Concept:  dim.ConceptIdentity,
			})
		}
	}
	sort.Slice(dimensions, func(i, j int) bool { return dimensions[i].Position < dimensions[j].Position })

	codelists, err := parseCodelists(data)
	if err != nil {
		return nil, err
	}

	return &Structure{
		DataflowID: dataflowID,
		Dimensions: dimensions,
		Codelists:  codelists,
	}, nil
}

// codelistIDFromRef extracts the codelist id from an enumeration reference.
// The API emits either a bare id or an SDMX URN like
// "urn:sdmx:org.sdmx.infomodel.codelist.Codelist=ABS:CL_SEX(1.0.0)".
func codelistIDFromRef(ref string) string {
	if i := strings.LastIndex(ref, "="); i >= 0 {
		ref = ref[i+1:]
	}
	if i := strings.Index(ref, ":"); i >= 0 {
		ref = ref[i+1:]
	}
	if i := strings.Index(ref, "("); i >= 0 {
		ref = ref[:i]
	}
	return ref
}
