package oracle

import (
	"encoding/json"
	"fmt"

	"google.golang.org/protobuf/types/known/structpb"
)

// Oracle messages travel as google.protobuf.Struct values holding the JSON
// form of the Go types. Numbers become doubles on the wire, so values above
// 2^53 are not representable.

func toStruct(v any) (*structpb.Struct, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, fmt.Errorf("oracle message must be an object: %w", err)
	}
	return structpb.NewStruct(m)
}

func fromStruct(st *structpb.Struct, v any) error {
	if st == nil {
		return fmt.Errorf("empty oracle message")
	}
	raw, err := json.Marshal(st.AsMap())
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, v)
}

type listUnitsRequest struct {
	UnitType string   `json:"unit_type"`
	IDs      []string `json:"ids,omitempty"`
}

type listUnitsResponse struct {
	Units []Unit `json:"units"`
}

type listUnitTypesResponse struct {
	UnitTypes []UnitType `json:"unit_types"`
}

type defaultValueRequest struct {
	UnitType  string `json:"unit_type"`
	EventType string `json:"event_type"`
}

type defaultValueResponse struct {
	Value int64 `json:"value"`
}

type eventTypeRequest struct {
	ID string `json:"id"`
}

type eventTypeResponse struct {
	EventType EventType `json:"event_type"`
}

type listEventTypesResponse struct {
	EventTypes []EventType `json:"event_types"`
}

type eventsRequest struct {
	EventType string `json:"event_type"`
	Units     []Unit `json:"units"`
	Start     string `json:"start"`
	End       string `json:"end"`
}

type eventsResponse struct {
	Events map[string][]Event `json:"events"`
}

type matchingUnitsRequest struct {
	EventType string     `json:"event_type"`
	Units     []Unit     `json:"units"`
	Query     MatchQuery `json:"query"`
}

type matchingUnitsResponse struct {
	Result MatchingResult `json:"result"`
}
