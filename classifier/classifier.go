package classifier

import (
	"context"
	"fmt"

	"capture-analyze-pipeline/llm"
	"capture-analyze-pipeline/parser"
)

const promptTemplate = `You are a security camera analysis assistant.
Analyze the image and check for the following risks: %q

Respond with JSON only:
{"is_anomaly": true/false, "reason": "short explanation"}`

// Classifier asks the vision model whether a frame matches the watched
// anomaly categories and parses its structured verdict.
type Classifier struct {
	client llm.Client
}

func New(client llm.Client) *Classifier {
	return &Classifier{client: client}
}

// Classify sends the frame plus the watch description to the model. It makes
// a single attempt and returns an explicit error on model or parse failure;
// collapsing that error to the fail-closed default verdict is the pipeline's
// responsibility.
func (c *Classifier) Classify(ctx context.Context, imageData []byte, watchDescription string) (*parser.Verdict, error) {
	instruction := fmt.Sprintf(promptTemplate, watchDescription)

	response, err := c.client.AnalyzeImage(ctx, imageData, instruction)
	if err != nil {
		return nil, fmt.Errorf("model call failed: %w", err)
	}

	verdict, err := parser.ParseVerdict(response)
	if err != nil {
		return nil, fmt.Errorf("verdict parse failed: %w", err)
	}

	return verdict, nil
}

// SourceName reports the underlying provider label.
func (c *Classifier) SourceName() string {
	return c.client.SourceName()
}
