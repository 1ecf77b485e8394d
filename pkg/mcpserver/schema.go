package mcpserver

import (
	"encoding/json"

	"github.com/invopop/jsonschema"
	"github.com/ytscribe/ytscribe/pkg/utils"
)

type getTranscriptArgs struct {
	Video      string `json:"video"                 jsonschema:"description=YouTube video ID or URL"`
	OutputPath string `json:"output_path,omitempty" jsonschema:"description=Destination file path; defaults to a generated name inside the configured output directory"`
}

type batchTranscriptsArgs struct {
	Videos          []string `json:"videos"                     jsonschema:"description=YouTube video IDs or URLs"`
	Mode            string   `json:"mode,omitempty"             jsonschema:"description=Output layout; defaults to individual,enum=aggregated,enum=individual"`
	OutputDirectory string   `json:"output_directory,omitempty" jsonschema:"description=Directory for output files; defaults to the configured output directory"`
}

// toolSchema reflects a tool's argument struct into a JSON schema suitable
// for MCP tool registration.
func toolSchema(args any) (json.RawMessage, error) {
	reflector := jsonschema.Reflector{
		Anonymous:      true,
		DoNotReference: true,
	}

	raw, err := json.Marshal(reflector.Reflect(args))
	if err != nil {
		return nil, utils.WrapIfNotNil(err)
	}
	return raw, nil
}
