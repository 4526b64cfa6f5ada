package dynamock

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/nisimpson/hangoutstore"
)

// SeedDocument is a JSON array of typed resources.
//
//	[
//	  {"type": "Group", "attributes": {"groupId": "g1", "groupName": "Climbers"}},
//	  {"type": "Hangout", "attributes": {"hangoutId": "h1", "title": "Bouldering"}}
//	]
type SeedDocument []SeedResource

// SeedResource is a single entity in a seed document. Type is an item type
// registered in the table registry; attribute names are the stored
// attribute names of that entity.
type SeedResource struct {
	Type       string         `json:"type"`
	Attributes map[string]any `json:"attributes"`
}

// SeedFromJSON decodes a seed document from r and writes every resource into
// the table. Keys and envelope attributes are derived from the entities the
// same way the store derives them, so attributes only carry domain fields.
// Returns the number of items saved and any errors generated.
func (s *SeedTestData) SeedFromJSON(ctx context.Context, r io.Reader) (int, error) {
	var document SeedDocument
	if err := json.NewDecoder(r).Decode(&document); err != nil {
		return 0, fmt.Errorf("failed to parse JSON document: %w", err)
	}

	entities, err := s.DecodeSeed(document)
	if err != nil {
		return 0, err
	}

	count := 0
	for i, entity := range entities {
		if err := s.SeedEntity(ctx, entity); err != nil {
			return count, fmt.Errorf("failed to seed resource at index %d (%s): %w", i, document[i].Type, err)
		}
		count++
	}
	return count, nil
}

// DecodeSeed converts the resources of document into entities without
// writing them.
func (s *SeedTestData) DecodeSeed(document SeedDocument) ([]hangoutstore.Entity, error) {
	registry := s.table.Registry
	if registry == nil {
		registry = hangoutstore.NewRegistry()
	}

	entities := make([]hangoutstore.Entity, 0, len(document))
	for i, resource := range document {
		entity, err := convertResource(registry, resource)
		if err != nil {
			return nil, fmt.Errorf("failed to convert resource at index %d: %w", i, err)
		}
		entities = append(entities, entity)
	}
	return entities, nil
}

func convertResource(registry *hangoutstore.Registry, resource SeedResource) (hangoutstore.Entity, error) {
	if resource.Type == "" {
		return nil, fmt.Errorf("resource missing required 'type' field")
	}

	entity, err := registry.New(hangoutstore.ItemType(resource.Type))
	if err != nil {
		return nil, err
	}

	av, err := attributevalue.MarshalMap(resource.Attributes)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal attributes: %w", err)
	}
	if err := attributevalue.UnmarshalMap(av, entity); err != nil {
		return nil, fmt.Errorf("failed to decode %s attributes: %w", resource.Type, err)
	}
	return entity, nil
}
