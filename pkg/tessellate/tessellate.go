// Package tessellate turns a composed assembly into triangle meshes using
// a geometry kernel. One mesh is produced per placed fragment.
package tessellate

import (
	"context"
	"fmt"
	"runtime"

	"golang.org/x/sync/errgroup"

	"github.com/chazu/alucad/pkg/assembly"
	"github.com/chazu/alucad/pkg/kernel"
)

// PartName names the mesh of a placed fragment, e.g. "gate#0/frame".
func PartName(p assembly.Part) string {
	return fmt.Sprintf("%s#%d/%s", p.Model, p.Instance, p.Fragment)
}

// Tessellate meshes every part of a in parallel, running at most workers
// kernel calls at once (workers <= 0 means one per CPU). The result keeps
// the part order of a. Parts holding no bodies, such as a slat panel too
// short for a single slat, produce no mesh.
//
// The first kernel failure cancels the remaining work and is returned.
func Tessellate(ctx context.Context, k kernel.Kernel, a *assembly.Assembly, workers int) ([]*kernel.Mesh, error) {
	if a == nil || len(a.Parts) == 0 {
		return nil, nil
	}
	if workers <= 0 {
		workers = runtime.NumCPU()
	}

	slots := make([]*kernel.Mesh, len(a.Parts))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i, p := range a.Parts {
		if p.Solid == nil || p.Solid.Parts() == 0 {
			continue
		}
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			m, err := k.ToMesh(p.Solid)
			if err != nil {
				return fmt.Errorf("tessellate: %s: %w", PartName(p), err)
			}
			m.PartName = PartName(p)
			slots[i] = m
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	meshes := make([]*kernel.Mesh, 0, len(slots))
	for _, m := range slots {
		if m != nil && !m.IsEmpty() {
			meshes = append(meshes, m)
		}
	}
	return meshes, nil
}
