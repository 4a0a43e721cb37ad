package shade

import (
	"context"
	"fmt"
	"runtime"

	"golang.org/x/sync/errgroup"
)

// Job is one shader to compile in a batch.
type Job struct {
	Name      string
	Fragments []CodeFragment
	Target    Target
	Options   CompileOptions
}

// CompileBatch compiles independent shaders in parallel. Outputs are
// returned in job order. The first failing job cancels the rest and its
// error, prefixed with the job name, is returned.
func CompileBatch(ctx context.Context, jobs []Job) ([]Output, error) {
	outputs := make([]Output, len(jobs))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.GOMAXPROCS(0))
	for i, job := range jobs {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			out, err := Compile(job.Fragments, job.Target, job.Options)
			if err != nil {
				return fmt.Errorf("%s: %w", job.Name, err)
			}
			outputs[i] = out
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return outputs, nil
}
