package ir

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseCommand(t *testing.T) {
	cmd, err := ParseCommand("```bash\naws cloudformation deploy --stack-name 'my stack' --region=eu-west-1\n```")
	require.NoError(t, err)
	assert.Equal(t, "aws", cmd.Program())
	assert.Equal(t, "my stack", cmd.Flag("--stack-name"))
	assert.Equal(t, "eu-west-1", cmd.Flag("--region"))
	assert.Equal(t, "", cmd.Flag("--template-file"))
}

func TestParseCommandRejectsEmpty(t *testing.T) {
	_, err := ParseCommand("```\n```")
	assert.Error(t, err)

	_, err = ParseCommand("aws 'unterminated")
	assert.Error(t, err)
}

func TestCommandString(t *testing.T) {
	cmd := NewCommand("aws", "cloudformation", "delete-stack", "--stack-name", "demo-app")
	assert.Equal(t, "aws cloudformation delete-stack --stack-name demo-app", cmd.String())
}

func TestStripFences(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"no fence", "Resources: {}", "Resources: {}"},
		{"yaml fence", "```yaml\nResources: {}\n```", "Resources: {}"},
		{"unterminated fence", "```\nResources: {}", "Resources: {}"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, StripFences(tt.input))
		})
	}
}

func TestParseKind(t *testing.T) {
	tests := []struct {
		input    string
		expected Kind
	}{
		{"stack", KindStack},
		{"Stacks", KindStack},
		{"cloudformation", KindStack},
		{"s3", KindBucket},
		{"instances", KindInstance},
		{"dynamodb", KindTable},
		{"volume", KindVolume},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			k, err := ParseKind(tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, k)
		})
	}

	_, err := ParseKind("queue")
	assert.Error(t, err)
}

func TestActionRequestValidate(t *testing.T) {
	var nilReq *ActionRequest
	assert.ErrorIs(t, nilReq.Validate(), ErrMissingIdentifier)
	assert.ErrorIs(t, (&ActionRequest{Identifier: "  "}).Validate(), ErrMissingIdentifier)
	assert.NoError(t, (&ActionRequest{Identifier: "demo"}).Validate())

	req := &ActionRequest{Params: map[string]string{"Image": "nginx"}}
	assert.Equal(t, "nginx", req.Param("image"))
	assert.Equal(t, "us-east-1", req.RegionOr("us-east-1"))
}

func TestInventoryIDs(t *testing.T) {
	inv := &Inventory{Resources: []*ResourceDescriptor{{ID: "a"}, {ID: "b"}}}
	assert.Equal(t, []string{"a", "b"}, inv.IDs())
	assert.Equal(t, 2, inv.Len())

	var empty *Inventory
	assert.Nil(t, empty.IDs())
}
