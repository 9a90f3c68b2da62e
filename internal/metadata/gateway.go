// Package metadata projects team documents from the metadata store into
// the flat records served by /api/teams.
package metadata

import (
	"context"
	"errors"
	"regexp"
	"strconv"
	"strings"

	"doc-parser/internal/logger"
	"doc-parser/internal/models"

	"github.com/sirupsen/logrus"
)

var ErrGatewayUnavailable = errors.New("metadata store unavailable")

// TeamDoc is a raw team document. ProblemStatement keeps whatever shape
// the store holds so it can be resolved later.
type TeamDoc struct {
	TeamName         string    `json:"team_name"`
	Tasks            []TaskDoc `json:"tasks"`
	ProblemStatement any       `json:"problem_statement_id"`
}

type TaskDoc struct {
	FileLinks []string `json:"file_links"`
	FileLink  string   `json:"file_link"`
}

type ProblemStatement struct {
	ID          string `json:"-"`
	Title       string `json:"title"`
	Description string `json:"description"`
}

// Source reads raw documents. Implementations wrap connectivity failures
// with ErrGatewayUnavailable.
type Source interface {
	Teams(ctx context.Context) ([]TeamDoc, error)
	ProblemStatements(ctx context.Context, ids []string) (map[string]ProblemStatement, error)
}

type Gateway struct {
	source Source
}

func NewGateway(source Source) *Gateway {
	return &Gateway{source: source}
}

// ListTeams returns every team that has at least one file link, in store
// order, with its problem statement joined in when it resolves.
func (g *Gateway) ListTeams(ctx context.Context) ([]models.TeamRecord, error) {
	docs, err := g.source.Teams(ctx)
	if err != nil {
		return nil, err
	}

	type pending struct {
		record models.TeamRecord
		psID   string
	}

	var (
		kept []pending
		ids  []string
		seen = map[string]bool{}
	)
	for _, doc := range docs {
		links := collectLinks(doc.Tasks)
		if len(links) == 0 {
			continue
		}
		p := pending{record: models.TeamRecord{TeamName: doc.TeamName, FileLinks: links}}
		if id, ok := ResolveID(doc.ProblemStatement); ok {
			p.psID = id
			if !seen[id] {
				seen[id] = true
				ids = append(ids, id)
			}
		}
		kept = append(kept, p)
	}

	statements := map[string]ProblemStatement{}
	if len(ids) > 0 {
		statements, err = g.source.ProblemStatements(ctx, ids)
		if err != nil {
			return nil, err
		}
	}

	teams := make([]models.TeamRecord, 0, len(kept))
	for _, p := range kept {
		rec := p.record
		if p.psID != "" {
			id := p.psID
			rec.ProblemStatementID = &id
			if ps, ok := statements[p.psID]; ok {
				title, desc := ps.Title, ps.Description
				rec.ProblemStatementTitle = &title
				rec.ProblemStatementDescription = &desc
			}
		}
		teams = append(teams, rec)
	}

	logger.WithFields(logrus.Fields{
		"documents": len(docs),
		"teams":     len(teams),
	}).Info("Teams listed")

	return teams, nil
}

func collectLinks(tasks []TaskDoc) []string {
	var links []string
	for _, t := range tasks {
		for _, l := range t.FileLinks {
			if l = strings.TrimSpace(l); l != "" {
				links = append(links, l)
			}
		}
		if l := strings.TrimSpace(t.FileLink); l != "" {
			links = append(links, l)
		}
	}
	return links
}

var objectIDCall = regexp.MustCompile(`^ObjectId\(\s*["']?([0-9A-Za-z]+)["']?\s*\)$`)

// ResolveID accepts a raw id (string or number), an embedded-id wrapper
// {"$oid": "..."}, or an id-like string such as ObjectId("...").
func ResolveID(v any) (string, bool) {
	switch id := v.(type) {
	case nil:
		return "", false
	case string:
		s := strings.TrimSpace(id)
		if m := objectIDCall.FindStringSubmatch(s); m != nil {
			return m[1], true
		}
		return s, s != ""
	case float64:
		return strconv.FormatFloat(id, 'f', -1, 64), true
	case int:
		return strconv.Itoa(id), true
	case int64:
		return strconv.FormatInt(id, 10), true
	case map[string]any:
		if inner, ok := id["$oid"]; ok {
			return ResolveID(inner)
		}
		return "", false
	default:
		return "", false
	}
}
