package search

import (
	"encoding/json"
	"fmt"
	"log"
	"sync/atomic"
	"time"

	meili "github.com/meilisearch/meilisearch-go"
)

const (
	idxArguments = "gavel_arguments"
	idxDecisions = "gavel_decisions"
)

// Meili indexes and searches case text via Meilisearch.
type Meili struct {
	client  meili.ServiceManager
	healthy atomic.Bool
	done    chan struct{}
}

// NewMeili creates a Meilisearch client and configures indexes. The caller
// should proceed without it when the instance stays unreachable; the health
// loop picks it back up if it recovers.
func NewMeili(url, apiKey string) *Meili {
	client := meili.New(url, meili.WithAPIKey(apiKey))

	m := &Meili{
		client: client,
		done:   make(chan struct{}),
	}

	if _, err := client.Health(); err != nil {
		log.Printf("search: meilisearch unavailable at %s: %v", url, err)
		m.healthy.Store(false)
	} else {
		m.healthy.Store(true)
		m.configureIndexes()
	}

	go m.healthLoop()
	return m
}

func (m *Meili) configureIndexes() {
	indexes := []struct {
		uid        string
		filterable []string
		searchable []string
	}{
		{
			uid:        idxArguments,
			filterable: []string{"caseId", "side"},
			searchable: []string{"text"},
		},
		{
			uid:        idxDecisions,
			filterable: []string{"caseId"},
			searchable: []string{"verdict", "reasoning"},
		},
	}

	for _, idx := range indexes {
		if _, err := m.client.CreateIndex(&meili.IndexConfig{
			Uid:        idx.uid,
			PrimaryKey: "id",
		}); err != nil {
			log.Printf("search: create index %s (may already exist): %v", idx.uid, err)
		}

		index := m.client.Index(idx.uid)
		filterableInterface := make([]interface{}, len(idx.filterable))
		for i, v := range idx.filterable {
			filterableInterface[i] = v
		}
		if _, err := index.UpdateFilterableAttributes(&filterableInterface); err != nil {
			log.Printf("search: update filterable attrs for %s: %v", idx.uid, err)
		}
		if _, err := index.UpdateSearchableAttributes(&idx.searchable); err != nil {
			log.Printf("search: update searchable attrs for %s: %v", idx.uid, err)
		}
	}
}

func (m *Meili) healthLoop() {
	ticker := time.NewTicker(10 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-m.done:
			return
		case <-ticker.C:
			_, err := m.client.Health()
			wasHealthy := m.healthy.Load()
			m.healthy.Store(err == nil)
			if err == nil && !wasHealthy {
				log.Println("search: meilisearch recovered, reconfiguring indexes")
				m.configureIndexes()
			}
		}
	}
}

// Close stops the background health monitor.
func (m *Meili) Close() {
	close(m.done)
}

// Healthy reports whether Meilisearch is reachable.
func (m *Meili) Healthy() bool {
	return m.healthy.Load()
}

// IndexArgument adds one argument to the argument index.
func (m *Meili) IndexArgument(record ArgumentRecord) error {
	if _, err := m.client.Index(idxArguments).AddDocuments([]ArgumentRecord{record}, nil); err != nil {
		m.healthy.Store(false)
		return fmt.Errorf("index argument: %w", err)
	}
	return nil
}

// IndexDecision adds one decision to the decision index.
func (m *Meili) IndexDecision(record DecisionRecord) error {
	if _, err := m.client.Index(idxDecisions).AddDocuments([]DecisionRecord{record}, nil); err != nil {
		m.healthy.Store(false)
		return fmt.Errorf("index decision: %w", err)
	}
	return nil
}

// Search queries both indexes and merges results.
func (m *Meili) Search(q Query) ([]Result, int64, error) {
	if !m.healthy.Load() {
		return nil, 0, fmt.Errorf("meilisearch unhealthy")
	}

	limit := int64(q.Limit)
	if limit == 0 {
		limit = 20
	}

	resp, err := m.client.MultiSearch(&meili.MultiSearchRequest{
		Queries: []*meili.SearchRequest{
			{IndexUID: idxArguments, Query: q.Text, Limit: limit},
			{IndexUID: idxDecisions, Query: q.Text, Limit: limit},
		},
	})
	if err != nil {
		m.healthy.Store(false)
		return nil, 0, fmt.Errorf("meilisearch multi-search: %w", err)
	}

	var results []Result
	var total int64
	for _, sr := range resp.Results {
		total += sr.EstimatedTotalHits
		for _, hit := range sr.Hits {
			results = append(results, hitToResult(sr.IndexUID, hit))
		}
	}
	return results, total, nil
}

func hitToResult(indexUID string, hit interface{}) Result {
	raw, err := json.Marshal(hit)
	if err != nil {
		return Result{}
	}

	if indexUID == idxArguments {
		var record ArgumentRecord
		if err := json.Unmarshal(raw, &record); err != nil {
			return Result{}
		}
		return Result{
			CaseID:    record.CaseID,
			Kind:      KindArgument,
			Side:      record.Side,
			Snippet:   record.Text,
			CreatedAt: record.CreatedAt,
		}
	}

	var record DecisionRecord
	if err := json.Unmarshal(raw, &record); err != nil {
		return Result{}
	}
	return Result{
		CaseID:    record.CaseID,
		Kind:      KindDecision,
		Snippet:   record.Verdict + ": " + record.Reasoning,
		CreatedAt: record.CreatedAt,
	}
}
