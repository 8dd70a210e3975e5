package core

import (
	"context"
	"strings"

	"github.com/ebogdum/mediasource/internal/errs"
	"github.com/ebogdum/mediasource/internal/pathutil"
)

// TransferPlan is a resolved transfer request plus the preview shown
// before it runs.
type TransferPlan struct {
	Request TransferRequest
	// Entries is the listing of a directory transfer.
	Entries []ListingEntry
	// File is the fetched object of a file transfer.
	File *ObjectContent
}

// PlanTransfer decides whether fromPath is a directory or a file on from
// and computes where it lands on to: under toPath inside to's base
// directory, keeping fromPath as the relative key.
func PlanTransfer(ctx context.Context, from *Source, fromPath string, to *Source, toPath string, method Method) (*TransferPlan, error) {
	if from == nil || to == nil {
		return nil, errs.New(errs.KindInvalidInput, "transfer needs a source and a destination")
	}

	plan := &TransferPlan{}
	kind := KindDir

	entries, err := from.GetContainerList(ctx, fromPath)
	switch {
	case err == nil && len(entries) > 0:
		plan.Entries = entries
	default:
		file, ferr := from.GetObjectContents(ctx, fromPath, true)
		if ferr != nil {
			if err != nil {
				return nil, err
			}
			return nil, errs.Wrap(errs.KindNotFound, "nothing to transfer at "+fromPath, ferr)
		}
		plan.File = file
		kind = KindFile
	}

	plan.Request = TransferRequest{
		Source:      from,
		SourcePath:  fromPath,
		Destination: to,
		Container:   destinationContainer(to.BaseDir(), toPath, fromPath, kind),
		Kind:        kind,
		Method:      method,
	}
	return plan, nil
}

func destinationContainer(baseDir, toPath, fromPath string, kind EntryKind) string {
	const d = pathutil.Delimiter

	root := strings.Trim(strings.Trim(baseDir, d)+d+strings.Trim(toPath, d), d)
	container := strings.Trim(root+d+fromPath, d)
	if kind == KindDir {
		container += d
	}
	return container
}
