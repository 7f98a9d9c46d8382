package dynamo

import (
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// Partition layout. Organizations, users and reset tokens live in fixed
// partitions because their lookups are not tenant-scoped; everything else
// lives in its organization's partition, which makes tenant isolation a
// property of the key itself.
const (
	orgPartition   = "ORG"
	userPartition  = "USER"
	tokenPartition = "TOKEN"

	skOrgPrefix    = "ORG#"
	skUserPrefix   = "USER#"
	skGroupPrefix  = "GROUP#"
	skTargetPrefix = "TARGET#"
	skSMTPPrefix   = "SMTP#"
	skTmplPrefix   = "TMPL#"
	skPagePrefix   = "PAGE#"
	skCampPrefix   = "CAMP#"
	skResultPrefix = "RESULT#"
	skTokenPrefix  = "TOKEN#"
)

func tenantPK(orgID string) string { return skOrgPrefix + orgID }

func itemKey(pk, sk string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"PK": &types.AttributeValueMemberS{Value: pk},
		"SK": &types.AttributeValueMemberS{Value: sk},
	}
}

// partitionQuery builds a query over one partition, optionally narrowed to
// a sort-key prefix.
func (b *Backend) partitionQuery(pk, skPrefix string) *dynamodb.QueryInput {
	in := &dynamodb.QueryInput{
		TableName:              aws.String(b.table),
		KeyConditionExpression: aws.String("PK = :pk"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":pk": &types.AttributeValueMemberS{Value: pk},
		},
	}
	if skPrefix != "" {
		in.KeyConditionExpression = aws.String("PK = :pk AND begins_with(SK, :sk)")
		in.ExpressionAttributeValues[":sk"] = &types.AttributeValueMemberS{Value: skPrefix}
	}
	return in
}
