package hangoutstore

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// NewClient loads the default AWS configuration for cfg.Region and returns a
// DynamoDB client. A non-empty cfg.Endpoint overrides the service endpoint,
// which is how DynamoDB Local is reached.
func NewClient(ctx context.Context, cfg Config) (*dynamodb.Client, error) {
	awsCfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(cfg.Region))
	if err != nil {
		return nil, fmt.Errorf("failed to load aws config: %w", err)
	}

	return dynamodb.NewFromConfig(awsCfg, func(o *dynamodb.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
	}), nil
}

// CreateTableInput describes the hangout table: the pk/sk primary key and
// the gsi1, gsi2 and external id indexes, all projecting every attribute.
func (t *Table) CreateTableInput() *dynamodb.CreateTableInput {
	str := func(name string) types.AttributeDefinition {
		return types.AttributeDefinition{AttributeName: aws.String(name), AttributeType: types.ScalarAttributeTypeS}
	}
	keys := func(hash, rng string) []types.KeySchemaElement {
		return []types.KeySchemaElement{
			{AttributeName: aws.String(hash), KeyType: types.KeyTypeHash},
			{AttributeName: aws.String(rng), KeyType: types.KeyTypeRange},
		}
	}
	index := func(name, hash, rng string) types.GlobalSecondaryIndex {
		return types.GlobalSecondaryIndex{
			IndexName:  aws.String(name),
			KeySchema:  keys(hash, rng),
			Projection: &types.Projection{ProjectionType: types.ProjectionTypeAll},
		}
	}

	return &dynamodb.CreateTableInput{
		TableName: aws.String(t.TableName),
		AttributeDefinitions: []types.AttributeDefinition{
			str(AttributeNamePK),
			str(AttributeNameSK),
			str(AttributeNameGSI1PK),
			str(AttributeNameGSI1SK),
			str(AttributeNameGSI2PK),
			str(AttributeNameGSI2SK),
			str(AttributeNameExternalID),
			str(AttributeNameExternalSource),
		},
		KeySchema: keys(AttributeNamePK, AttributeNameSK),
		GlobalSecondaryIndexes: []types.GlobalSecondaryIndex{
			index(t.GSI1IndexName, AttributeNameGSI1PK, AttributeNameGSI1SK),
			index(t.GSI2IndexName, AttributeNameGSI2PK, AttributeNameGSI2SK),
			index(t.ExternalIDIndexName, AttributeNameExternalID, AttributeNameExternalSource),
		},
		BillingMode: types.BillingModePayPerRequest,
	}
}

// TimeToLiveInput enables expiry of stored page cursors on the expires
// attribute.
func (t *Table) TimeToLiveInput() *dynamodb.UpdateTimeToLiveInput {
	return &dynamodb.UpdateTimeToLiveInput{
		TableName: aws.String(t.TableName),
		TimeToLiveSpecification: &types.TimeToLiveSpecification{
			AttributeName: aws.String(AttributeNameExpires),
			Enabled:       aws.Bool(true),
		},
	}
}
