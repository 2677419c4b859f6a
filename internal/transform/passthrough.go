package transform

import "context"

type passthrough struct{}

// PassthroughFactory returns transformers that never find a target.
func PassthroughFactory() Factory {
	return func(context.Context) (Transformer, error) {
		return passthrough{}, nil
	}
}

func (passthrough) Transform(ctx context.Context, _, _ string, _ Subject) (Outcome, error) {
	if err := ctx.Err(); err != nil {
		return NoTarget, err
	}
	return NoTarget, nil
}

func (passthrough) Close() error { return nil }
