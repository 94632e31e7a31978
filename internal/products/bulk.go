package products

import (
	"context"
	"errors"

	pkgerrors "github.com/angelmondragon/shelfpos/pkg/errors"
)

// BulkSkip is an input BulkAdd did not create.
type BulkSkip struct {
	Index  int    `json:"index"`
	Input  Input  `json:"product"`
	Code   string `json:"code"`
	Reason string `json:"reason"`
}

// BulkResult lists what BulkAdd created and what it skipped.
type BulkResult struct {
	Succeeded []Product  `json:"succeeded"`
	Skipped   []BulkSkip `json:"skipped"`
}

// BulkAdd adds every input through svc in order. A rejected input is
// recorded and the rest still run; only a cancelled context stops early.
func BulkAdd(ctx context.Context, svc Service, inputs []Input) (*BulkResult, error) {
	res := &BulkResult{Succeeded: []Product{}, Skipped: []BulkSkip{}}
	for i, in := range inputs {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		p, err := svc.Add(ctx, in)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return res, err
			}
			res.Skipped = append(res.Skipped, skipFor(i, in, err))
			continue
		}
		res.Succeeded = append(res.Succeeded, *p)
	}
	return res, nil
}

func skipFor(index int, in Input, err error) BulkSkip {
	skip := BulkSkip{Index: index, Input: in, Code: string(pkgerrors.CodeInternal), Reason: err.Error()}
	if typed := pkgerrors.As(err); typed != nil {
		skip.Code = string(typed.Code())
		skip.Reason = typed.Message()
	}
	return skip
}
