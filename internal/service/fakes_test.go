package service

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sort"
	"sync"
	"time"

	"killfeed-tracker/internal/domain"
	"killfeed-tracker/internal/remote"
)

func key(parts ...string) string {
	out := parts[0]
	for _, p := range parts[1:] {
		out += "/" + p
	}
	return out
}

type fakeServers struct {
	mu      sync.Mutex
	servers map[string]*domain.Server
}

func newFakeServers(servers ...*domain.Server) *fakeServers {
	f := &fakeServers{servers: make(map[string]*domain.Server)}
	for _, s := range servers {
		f.servers[key(s.CommunityID, s.ServerID)] = s
	}
	return f
}

func (f *fakeServers) List(ctx context.Context) ([]domain.Server, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.Server
	for _, s := range f.servers {
		out = append(out, *s)
	}
	return out, nil
}

func (f *fakeServers) Get(ctx context.Context, communityID, serverID string) (*domain.Server, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.servers[key(communityID, serverID)]
	if !ok {
		return nil, nil
	}
	cp := *s
	return &cp, nil
}

func (f *fakeServers) SetOnline(ctx context.Context, communityID, serverID string, online bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if s, ok := f.servers[key(communityID, serverID)]; ok {
		s.Online = online
	}
	return nil
}

func (f *fakeServers) UpdateStatus(ctx context.Context, communityID, serverID string, playerCount, maxPlayers int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if s, ok := f.servers[key(communityID, serverID)]; ok {
		s.PlayerCount = playerCount
		s.MaxPlayers = maxPlayers
	}
	return nil
}

func (f *fakeServers) online(communityID, serverID string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.servers[key(communityID, serverID)].Online
}

type fakeCursors struct {
	mu           sync.Mutex
	cursors      map[string]*domain.Cursor
	failAdvances int
	advances     int
}

func newFakeCursors() *fakeCursors {
	return &fakeCursors{cursors: make(map[string]*domain.Cursor)}
}

func (f *fakeCursors) Get(ctx context.Context, communityID, serverID, fileID string) (*domain.Cursor, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.cursors[key(communityID, serverID, fileID)]
	if !ok {
		return nil, nil
	}
	cp := *c
	return &cp, nil
}

func (f *fakeCursors) Advance(ctx context.Context, c *domain.Cursor) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.advances++
	if f.failAdvances > 0 {
		f.failAdvances--
		return fmt.Errorf("cursor store unavailable")
	}
	cp := *c
	cp.AdvancedAt = time.Now()
	f.cursors[key(c.CommunityID, c.ServerID, c.FileID)] = &cp
	return nil
}

func (f *fakeCursors) Reset(ctx context.Context, communityID, serverID, fileID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.cursors, key(communityID, serverID, fileID))
	return nil
}

func (f *fakeCursors) ResetForServer(ctx context.Context, communityID, serverID string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var n int64
	prefix := key(communityID, serverID) + "/"
	for k := range f.cursors {
		if len(k) > len(prefix) && k[:len(prefix)] == prefix {
			delete(f.cursors, k)
			n++
		}
	}
	return n, nil
}

func (f *fakeCursors) offset(communityID, serverID, fileID string) int64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.cursors[key(communityID, serverID, fileID)]
	if !ok {
		return 0
	}
	return c.Offset
}

type fakePlayers struct {
	mu       sync.Mutex
	players  map[string]*domain.Player
	deathErr error
}

func newFakePlayers() *fakePlayers {
	return &fakePlayers{players: make(map[string]*domain.Player)}
}

func (f *fakePlayers) put(p *domain.Player) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.players[key(p.CommunityID, p.PlayerID)] = p
}

func (f *fakePlayers) Get(ctx context.Context, communityID, playerID string) (*domain.Player, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.players[key(communityID, playerID)]
	if !ok {
		return nil, nil
	}
	cp := *p
	return &cp, nil
}

func (f *fakePlayers) GetOrCreate(ctx context.Context, communityID, playerID, name string) (*domain.Player, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	k := key(communityID, playerID)
	if p, ok := f.players[k]; ok {
		p.Name = name
		cp := *p
		return &cp, nil
	}
	p := &domain.Player{CommunityID: communityID, PlayerID: playerID, Name: name}
	f.players[k] = p
	cp := *p
	return &cp, nil
}

func (f *fakePlayers) IncrementKill(ctx context.Context, communityID, playerID string, at time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.players[key(communityID, playerID)]
	if !ok {
		return fmt.Errorf("player not found")
	}
	p.KillCount++
	return nil
}

func (f *fakePlayers) IncrementDeath(ctx context.Context, communityID, playerID string, at time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.deathErr != nil {
		return f.deathErr
	}
	p, ok := f.players[key(communityID, playerID)]
	if !ok {
		return fmt.Errorf("player not found")
	}
	p.DeathCount++
	return nil
}

func (f *fakePlayers) AddCoins(ctx context.Context, communityID, playerID string, amount int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.players[key(communityID, playerID)]
	if !ok {
		return fmt.Errorf("player not found")
	}
	p.CoinBalance += amount
	return nil
}

func (f *fakePlayers) TouchActive(ctx context.Context, communityID, playerID string, at time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.players[key(communityID, playerID)]
	if !ok {
		return fmt.Errorf("player not found")
	}
	p.LastActiveAt = at
	return nil
}

func (f *fakePlayers) stats(communityID, playerID string) (kills, deaths, coins int64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.players[key(communityID, playerID)]
	if !ok {
		return 0, 0, 0
	}
	return p.KillCount, p.DeathCount, p.CoinBalance
}

type fakeFactions struct {
	mu         sync.Mutex
	factions   map[string]*domain.Faction
	membership map[string]string // player key -> faction id
	players    *fakePlayers
}

func newFakeFactions(players *fakePlayers) *fakeFactions {
	return &fakeFactions{
		factions:   make(map[string]*domain.Faction),
		membership: make(map[string]string),
		players:    players,
	}
}

func (f *fakeFactions) put(fa *domain.Faction) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.factions[key(fa.CommunityID, fa.FactionID)] = fa
	for _, pid := range fa.MemberIDs {
		f.membership[key(fa.CommunityID, pid)] = fa.FactionID
	}
}

func (f *fakeFactions) Get(ctx context.Context, communityID, factionID string) (*domain.Faction, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	fa, ok := f.factions[key(communityID, factionID)]
	if !ok {
		return nil, nil
	}
	cp := *fa
	return &cp, nil
}

func (f *fakeFactions) ListIDs(ctx context.Context, communityID string) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var ids []string
	for _, fa := range f.factions {
		if fa.CommunityID == communityID {
			ids = append(ids, fa.FactionID)
		}
	}
	sort.Strings(ids)
	return ids, nil
}

func (f *fakeFactions) FactionOf(ctx context.Context, communityID, playerID string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.membership[key(communityID, playerID)], nil
}

func (f *fakeFactions) SumMemberStats(ctx context.Context, communityID, factionID string) (kills, deaths, coins int64, err error) {
	f.mu.Lock()
	fa, ok := f.factions[key(communityID, factionID)]
	if !ok {
		f.mu.Unlock()
		return 0, 0, 0, fmt.Errorf("faction not found")
	}
	members := append([]string{}, fa.MemberIDs...)
	f.mu.Unlock()

	for _, pid := range members {
		k, d, c := f.players.stats(communityID, pid)
		kills += k
		deaths += d
		coins += c
	}
	return kills, deaths, coins, nil
}

func (f *fakeFactions) ReplaceTotals(ctx context.Context, communityID, factionID string, kills, deaths, coins int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	fa, ok := f.factions[key(communityID, factionID)]
	if !ok {
		return fmt.Errorf("faction not found")
	}
	fa.TotalKills = kills
	fa.TotalDeaths = deaths
	fa.TotalCoins = coins
	fa.SyncedAt = time.Now()
	return nil
}

func (f *fakeFactions) ApplyDelta(ctx context.Context, communityID, factionID string, kills, deaths, coins int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	fa, ok := f.factions[key(communityID, factionID)]
	if !ok {
		return fmt.Errorf("faction not found")
	}
	fa.TotalKills = max(fa.TotalKills+kills, 0)
	fa.TotalDeaths = max(fa.TotalDeaths+deaths, 0)
	fa.TotalCoins = max(fa.TotalCoins+coins, 0)
	return nil
}

func (f *fakeFactions) TouchActive(ctx context.Context, communityID, factionID string, at time.Time) error {
	return nil
}

func (f *fakeFactions) totals(communityID, factionID string) (kills, deaths, coins int64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	fa := f.factions[key(communityID, factionID)]
	return fa.TotalKills, fa.TotalDeaths, fa.TotalCoins
}

type fakeTransactions struct {
	mu   sync.Mutex
	txns []domain.Transaction
}

func (f *fakeTransactions) Insert(ctx context.Context, txn *domain.Transaction) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.txns = append(f.txns, *txn)
	return nil
}

func (f *fakeTransactions) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.txns)
}

type fakeDirty struct {
	mu     sync.Mutex
	marked []string
}

func (f *fakeDirty) MarkDirty(communityID, factionID string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.marked = append(f.marked, key(communityID, factionID))
}

type fakeNotifier struct {
	mu     sync.Mutex
	events []domain.ClassifiedEvent
}

func (f *fakeNotifier) Publish(ctx context.Context, communityID, serverID string, ev domain.ClassifiedEvent) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, ev)
}

func (f *fakeNotifier) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.events)
}

// fakeSource serves log content from memory. When gate is set, ListFiles
// signals started and then blocks until the gate closes, which lets tests
// hold a poll in flight.
type fakeSource struct {
	mu      sync.Mutex
	content map[string][]byte
	listErr error
	gate    chan struct{}
	started chan struct{}
}

func newFakeSource() *fakeSource {
	return &fakeSource{content: make(map[string][]byte)}
}

func (s *fakeSource) set(fileID string, data []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.content[fileID] = data
}

func (s *fakeSource) ListFiles(ctx context.Context, srv *domain.Server) ([]remote.FileInfo, error) {
	s.mu.Lock()
	gate, started := s.gate, s.started
	s.mu.Unlock()
	if gate != nil {
		started <- struct{}{}
		<-gate
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listErr != nil {
		return nil, s.listErr
	}
	var files []remote.FileInfo
	for id, data := range s.content {
		files = append(files, remote.FileInfo{ID: id, Size: int64(len(data))})
	}
	sort.Slice(files, func(i, j int) bool { return files[i].ID < files[j].ID })
	return files, nil
}

func (s *fakeSource) ReadFrom(ctx context.Context, srv *domain.Server, fileID string, offset int64) (io.ReadCloser, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, ok := s.content[fileID]
	if !ok {
		return nil, &remote.TransportError{Kind: remote.KindNotFound, Op: "read " + fileID, Err: fmt.Errorf("no such file")}
	}
	if offset > int64(len(data)) {
		offset = int64(len(data))
	}
	return io.NopCloser(bytes.NewReader(data[offset:])), nil
}
