package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sort"

	"github.com/aretw0/lectern/pkg/checkpoint"
	"github.com/aretw0/lectern/pkg/domain"
)

// ParseWorkflows resolves the --workflow flag. Empty means every namespace.
func ParseWorkflows(name string) ([]domain.Workflow, error) {
	if name == "" {
		return domain.Workflows(), nil
	}
	w, err := domain.ParseWorkflow(name)
	if err != nil {
		return nil, err
	}
	return []domain.Workflow{w}, nil
}

// ListSessions prints the stored session ids of each workflow.
func ListSessions(ctx context.Context, stores *checkpoint.Stores, workflows []domain.Workflow, out io.Writer) error {
	total := 0
	for _, w := range workflows {
		ids, err := stores.For(w).List(ctx)
		if err != nil {
			return fmt.Errorf("list %s sessions: %w", w, err)
		}
		if len(ids) == 0 {
			continue
		}
		sort.Strings(ids)
		fmt.Fprintf(out, "%s:\n", w)
		for _, id := range ids {
			fmt.Fprintf(out, "- %s\n", id)
		}
		total += len(ids)
	}
	if total == 0 {
		fmt.Fprintln(out, "No sessions found.")
	}
	return nil
}

// InspectSession prints the stored checkpoint of a session as indented JSON.
// Without an explicit workflow the first namespace holding the id wins.
func InspectSession(ctx context.Context, stores *checkpoint.Stores, workflows []domain.Workflow, sessionID string, out io.Writer) error {
	for _, w := range workflows {
		record, err := stores.For(w).Load(ctx, sessionID)
		if errors.Is(err, domain.ErrSessionNotFound) {
			continue
		}
		if err != nil {
			return fmt.Errorf("load %s session %q: %w", w, sessionID, err)
		}
		data, err := json.MarshalIndent(record, "", "  ")
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(out, string(data))
		return err
	}
	return fmt.Errorf("session %q: %w", sessionID, domain.ErrSessionNotFound)
}

// RemoveSessions deletes the ids from every given workflow.
func RemoveSessions(ctx context.Context, stores *checkpoint.Stores, workflows []domain.Workflow, ids []string, out io.Writer) error {
	var errs []error
	for _, id := range ids {
		for _, w := range workflows {
			if err := stores.For(w).Delete(ctx, id); err != nil {
				errs = append(errs, fmt.Errorf("remove %s session %q: %w", w, id, err))
			}
		}
		fmt.Fprintf(out, "Removed session '%s'\n", id)
	}
	return errors.Join(errs...)
}
