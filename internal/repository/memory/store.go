package memory

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"sync"

	"ViewBench/internal/model"
)

type rawDoc struct {
	id     uint64
	fields map[string]any
}

// Store 进程内实现全部存储接口，实时聚合复用 aggregate 包的归约器
type Store struct {
	mu       sync.RWMutex
	nextID   uint64
	raw      map[string][]rawDoc
	games    map[string]*model.Game
	category map[string]map[string]model.CategoryStat
	pairs    map[string]model.PairStat
	years    map[int]model.YearlyStat
	themes   map[string]model.ThemeCountRank
	ranks    map[string]model.RankEntry
	metrics  []model.RunMetric
	indexes  map[string]model.IndexDef
	failIDs  map[string]error
}

func NewStore() *Store {
	return &Store{
		raw:      make(map[string][]rawDoc),
		games:    make(map[string]*model.Game),
		category: make(map[string]map[string]model.CategoryStat),
		pairs:    make(map[string]model.PairStat),
		years:    make(map[int]model.YearlyStat),
		themes:   make(map[string]model.ThemeCountRank),
		ranks:    make(map[string]model.RankEntry),
		indexes:  make(map[string]model.IndexDef),
		failIDs:  make(map[string]error),
	}
}

// FailGame 让指定 id 的 upsert 失败（模拟单行写入错误）
func (s *Store) FailGame(id string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failIDs[id] = err
}

// ---------------- RawSource ----------------

func (s *Store) HasRaw(ctx context.Context, collection string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.raw[collection]) > 0, nil
}

func (s *Store) CountRaw(ctx context.Context, collection string) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return int64(len(s.raw[collection])), nil
}

func (s *Store) StreamRaw(ctx context.Context, collection string, batchSize int, fn func([]model.RawEntity) error) error {
	s.mu.RLock()
	docs := append([]rawDoc(nil), s.raw[collection]...)
	s.mu.RUnlock()
	if batchSize <= 0 {
		batchSize = 1000
	}
	for start := 0; start < len(docs); start += batchSize {
		if err := ctx.Err(); err != nil {
			return err
		}
		end := start + batchSize
		if end > len(docs) {
			end = len(docs)
		}
		batch := make([]model.RawEntity, 0, end-start)
		for _, d := range docs[start:end] {
			batch = append(batch, model.RawEntity{SourceID: strconv.FormatUint(d.id, 10), Fields: d.fields})
		}
		if err := fn(batch); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) InsertRaw(ctx context.Context, collection string, docs []map[string]any) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, d := range docs {
		s.nextID++
		s.raw[collection] = append(s.raw[collection], rawDoc{id: s.nextID, fields: d})
	}
	return len(docs), nil
}

func (s *Store) DropRaw(ctx context.Context, collection string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := int64(len(s.raw[collection]))
	delete(s.raw, collection)
	return n, nil
}

func (s *Store) RawCollections(ctx context.Context) (map[string]int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]int64, len(s.raw))
	for k, v := range s.raw {
		out[k] = int64(len(v))
	}
	return out, nil
}

// ---------------- GameStore ----------------

// UpsertGames 逐行替换；失败的行不影响同批其他行，只统计成功写入的行
func (s *Store) UpsertGames(ctx context.Context, games []*model.Game) (model.BulkResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	res := model.BulkResult{Attempted: len(games)}
	var firstErr error
	for _, g := range games {
		if err, bad := s.failIDs[g.ID]; bad {
			res.Failed = append(res.Failed, g.ID)
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		cp := *g
		s.games[g.ID] = &cp
		res.Written++
	}
	if firstErr != nil {
		return res, &model.BatchWriteError{Collection: "games", Result: res, Err: firstErr}
	}
	return res, nil
}

func (s *Store) sortedGames() []*model.Game {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*model.Game, 0, len(s.games))
	for _, g := range s.games {
		cp := *g
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (s *Store) StreamGames(ctx context.Context, batchSize int, fn func([]*model.Game) error) error {
	games := s.sortedGames()
	if batchSize <= 0 {
		batchSize = 1000
	}
	for start := 0; start < len(games); start += batchSize {
		if err := ctx.Err(); err != nil {
			return err
		}
		end := start + batchSize
		if end > len(games) {
			end = len(games)
		}
		if err := fn(games[start:end]); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) CountGames(ctx context.Context) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return int64(len(s.games)), nil
}

func (s *Store) DeleteInvalidYears(ctx context.Context, minYear int) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for id, g := range s.games {
		if g.Year != nil && *g.Year < minYear {
			delete(s.games, id)
			n++
		}
	}
	return n, nil
}

// Game 按 id 读取（测试辅助）
func (s *Store) Game(id string) (*model.Game, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	g, ok := s.games[id]
	if !ok {
		return nil, false
	}
	cp := *g
	return &cp, true
}

// ---------------- MetricStore ----------------

func (s *Store) InsertMetric(ctx context.Context, m *model.RunMetric) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.metrics = append(s.metrics, *m)
	return nil
}

func (s *Store) ListMetrics(ctx context.Context) ([]model.RunMetric, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := append([]model.RunMetric(nil), s.metrics...)
	sort.SliceStable(out, func(i, j int) bool { return out[i].TS.Before(out[j].TS) })
	return out, nil
}

// ---------------- IndexAdmin ----------------

func (s *Store) CreateIndexes(ctx context.Context, defs []model.IndexDef) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	names := make([]string, 0, len(defs))
	for _, d := range defs {
		s.indexes[d.Name] = d
		names = append(names, d.Name)
	}
	return names, nil
}

func (s *Store) DropIndexes(ctx context.Context, defs []model.IndexDef) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var names []string
	for _, d := range defs {
		if _, ok := s.indexes[d.Name]; ok {
			delete(s.indexes, d.Name)
			names = append(names, d.Name)
		}
	}
	return names, nil
}

func (s *Store) ListIndexes(ctx context.Context) ([]model.IndexInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]model.IndexInfo, 0, len(s.indexes))
	for _, d := range s.indexes {
		out = append(out, model.IndexInfo{Name: d.Name, Table: d.Table, Def: fmt.Sprintf("(%s)", d.Columns)})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}
