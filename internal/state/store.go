package state

import (
	"sync"

	"genstudio/internal/api"
)

// Kind names the slice of state a change touched.
type Kind string

const (
	KindPrompts     Kind = "prompts"
	KindGenerations Kind = "generations"
	KindBatchJobs   Kind = "batch_jobs"
	KindImages      Kind = "images"
	KindStatus      Kind = "status"
	KindSettings    Kind = "settings"
	KindUI          Kind = "ui"
)

// Op names the mutation that produced a change.
type Op string

const (
	OpSet      Op = "set"
	OpAdd      Op = "add"
	OpUpdate   Op = "update"
	OpRemove   Op = "remove"
	OpSelect   Op = "select"
	OpPaging   Op = "paging"
	OpTaxonomy Op = "taxonomy"
	OpLoading  Op = "loading"
	OpError    Op = "error"
	OpRoute    Op = "route"
	OpMerge    Op = "merge"
	OpToggle   Op = "toggle"
)

// Change describes one applied mutation. Seq increases by one per change so
// subscribers can order notifications delivered from different goroutines.
type Change struct {
	Seq  uint64
	Op   Op
	Kind Kind
	ID   string
}

// Settings holds the generation defaults applied to new requests.
type Settings struct {
	Model    string  `json:"model,omitempty"`
	Size     string  `json:"size"`
	Quality  string  `json:"quality"`
	Strength float64 `json:"strength"`
}

// SettingsPatch is a partial Settings update; nil fields are left alone.
type SettingsPatch struct {
	Model    *string
	Size     *string
	Quality  *string
	Strength *float64
}

// UI holds display preferences read by the rendering layer.
type UI struct {
	SidebarOpen           bool   `json:"sidebar_open"`
	Theme                 string `json:"theme"`
	ShowGenerationHistory bool   `json:"show_generation_history"`
	ShowBatchQueue        bool   `json:"show_batch_queue"`
}

// AppState is the root state value. Error is empty when no error is set.
type AppState struct {
	Prompts          ListBlock[api.Prompt]     `json:"prompts"`
	PromptCategories []string                  `json:"prompt_categories"`
	PromptTags       []string                  `json:"prompt_tags"`
	Generations      ListBlock[api.Generation] `json:"generations"`
	BatchJobs        ListBlock[api.BatchJob]   `json:"batch_jobs"`
	Images           ListBlock[api.Image]      `json:"images"`
	Loading          bool                      `json:"loading"`
	Error            string                    `json:"error,omitempty"`
	CurrentPage      string                    `json:"current_page"`
	Settings         Settings                  `json:"settings"`
	UI               UI                        `json:"ui"`
}

// Store owns an AppState and the fixed set of operations allowed to change it.
// Each operation runs atomically; subscribers are notified after the change,
// outside the lock, so they may read the store but must not expect to observe
// exactly the state that produced their Change when writers run concurrently.
//
// Create one Store per process (or per test) and pass it explicitly.
type Store struct {
	mu       sync.Mutex
	state    AppState
	seq      uint64
	inflight int

	subMu   sync.Mutex
	subs    map[uint64]func(Change)
	nextSub uint64
}

// New constructs a store with empty list blocks.
func New(settings Settings, ui UI, pageSize int) *Store {
	if pageSize <= 0 {
		pageSize = 20
	}
	if ui.Theme == "" {
		ui.Theme = "light"
	}
	return &Store{
		state: AppState{
			Prompts:          newListBlock[api.Prompt](pageSize),
			PromptCategories: []string{},
			PromptTags:       []string{},
			Generations:      newListBlock[api.Generation](pageSize),
			BatchJobs:        newListBlock[api.BatchJob](pageSize),
			Images:           newListBlock[api.Image](pageSize),
			CurrentPage:      "/",
			Settings:         settings,
			UI:               ui,
		},
		subs: map[uint64]func(Change){},
	}
}

// Snapshot returns a deep copy of the current state.
func (s *Store) Snapshot() AppState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.clone()
}

// Subscribe registers fn for every applied change and returns a cancel func.
// Operations that turn out to be no-ops (unknown id) do not notify.
func (s *Store) Subscribe(fn func(Change)) (cancel func()) {
	if fn == nil {
		return func() {}
	}
	s.subMu.Lock()
	id := s.nextSub
	s.nextSub++
	s.subs[id] = fn
	s.subMu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.subMu.Lock()
			delete(s.subs, id)
			s.subMu.Unlock()
		})
	}
}

// mutate applies fn under the lock and notifies subscribers when fn reports a change.
func (s *Store) mutate(op Op, kind Kind, id string, fn func(st *AppState) bool) bool {
	changed, seq := s.apply(fn)
	if changed {
		s.notify(Change{Seq: seq, Op: op, Kind: kind, ID: id})
	}
	return changed
}

func (s *Store) apply(fn func(st *AppState) bool) (bool, uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !fn(&s.state) {
		return false, 0
	}
	s.seq++
	return true, s.seq
}

func (s *Store) notify(change Change) {
	s.subMu.Lock()
	fns := make([]func(Change), 0, len(s.subs))
	for _, fn := range s.subs {
		fns = append(fns, fn)
	}
	s.subMu.Unlock()
	for _, fn := range fns {
		fn(change)
	}
}

// SetLoading sets the global loading flag.
func (s *Store) SetLoading(loading bool) {
	s.mutate(OpLoading, KindStatus, "", func(st *AppState) bool {
		st.Loading = loading
		return true
	})
}

// SetError sets the global error; an empty message clears it.
func (s *Store) SetError(message string) {
	s.mutate(OpError, KindStatus, "", func(st *AppState) bool {
		st.Error = message
		return true
	})
}

// Begin marks the start of an orchestrated call: loading on, error cleared.
// Calls may overlap; Loading stays true until every begun call has settled.
func (s *Store) Begin() {
	s.mutate(OpLoading, KindStatus, "", func(st *AppState) bool {
		s.inflight++
		st.Loading = true
		st.Error = ""
		return true
	})
}

// Settle marks the end of an orchestrated call. The global error always
// reflects the most recently settled call; an empty message clears it.
func (s *Store) Settle(message string) {
	s.mutate(OpLoading, KindStatus, "", func(st *AppState) bool {
		if s.inflight > 0 {
			s.inflight--
		}
		st.Loading = s.inflight > 0
		st.Error = message
		return true
	})
}

// SetCurrentPage records the route the rendering layer is showing.
func (s *Store) SetCurrentPage(page string) {
	s.mutate(OpRoute, KindUI, "", func(st *AppState) bool {
		st.CurrentPage = page
		return true
	})
}

// UpdateSettings merges the non-nil fields of patch into the generation defaults.
func (s *Store) UpdateSettings(patch SettingsPatch) {
	s.mutate(OpMerge, KindSettings, "", func(st *AppState) bool {
		if patch.Model != nil {
			st.Settings.Model = *patch.Model
		}
		if patch.Size != nil {
			st.Settings.Size = *patch.Size
		}
		if patch.Quality != nil {
			st.Settings.Quality = *patch.Quality
		}
		if patch.Strength != nil {
			st.Settings.Strength = *patch.Strength
		}
		return true
	})
}

// ToggleSidebar flips the sidebar flag.
func (s *Store) ToggleSidebar() {
	s.mutate(OpToggle, KindUI, "", func(st *AppState) bool {
		st.UI.SidebarOpen = !st.UI.SidebarOpen
		return true
	})
}

// SetSidebarOpen sets the sidebar flag.
func (s *Store) SetSidebarOpen(open bool) {
	s.mutate(OpToggle, KindUI, "", func(st *AppState) bool {
		st.UI.SidebarOpen = open
		return true
	})
}

// SetTheme sets the display theme.
func (s *Store) SetTheme(theme string) {
	s.mutate(OpMerge, KindUI, "", func(st *AppState) bool {
		st.UI.Theme = theme
		return true
	})
}

// ToggleGenerationHistory flips the generation history panel.
func (s *Store) ToggleGenerationHistory() {
	s.mutate(OpToggle, KindUI, "", func(st *AppState) bool {
		st.UI.ShowGenerationHistory = !st.UI.ShowGenerationHistory
		return true
	})
}

// ToggleBatchQueue flips the batch queue panel.
func (s *Store) ToggleBatchQueue() {
	s.mutate(OpToggle, KindUI, "", func(st *AppState) bool {
		st.UI.ShowBatchQueue = !st.UI.ShowBatchQueue
		return true
	})
}

// SetPaging sets the page and page size of a list block without touching its
// contents. Non-positive values are ignored.
func (s *Store) SetPaging(kind Kind, page, pageSize int) {
	s.mutate(OpPaging, kind, "", func(st *AppState) bool {
		apply := func(cur, size *int) bool {
			changed := false
			if page > 0 {
				*cur = page
				changed = true
			}
			if pageSize > 0 {
				*size = pageSize
				changed = true
			}
			return changed
		}
		switch kind {
		case KindPrompts:
			return apply(&st.Prompts.CurrentPage, &st.Prompts.PageSize)
		case KindGenerations:
			return apply(&st.Generations.CurrentPage, &st.Generations.PageSize)
		case KindBatchJobs:
			return apply(&st.BatchJobs.CurrentPage, &st.BatchJobs.PageSize)
		case KindImages:
			return apply(&st.Images.CurrentPage, &st.Images.PageSize)
		default:
			return false
		}
	})
}

// Paging returns the current page and page size of a list block.
func (s *Store) Paging(kind Kind) (page, pageSize int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch kind {
	case KindPrompts:
		return s.state.Prompts.CurrentPage, s.state.Prompts.PageSize
	case KindGenerations:
		return s.state.Generations.CurrentPage, s.state.Generations.PageSize
	case KindBatchJobs:
		return s.state.BatchJobs.CurrentPage, s.state.BatchJobs.PageSize
	case KindImages:
		return s.state.Images.CurrentPage, s.state.Images.PageSize
	default:
		return 0, 0
	}
}

func (st AppState) clone() AppState {
	out := st
	out.Prompts = st.Prompts.clone(copyPrompt)
	out.PromptCategories = append([]string{}, st.PromptCategories...)
	out.PromptTags = append([]string{}, st.PromptTags...)
	out.Generations = st.Generations.clone(identity[api.Generation])
	out.BatchJobs = st.BatchJobs.clone(copyBatchJob)
	out.Images = st.Images.clone(identity[api.Image])
	return out
}

func identity[T any](v T) T { return v }

func copyPrompt(p api.Prompt) api.Prompt {
	if p.Tags != nil {
		p.Tags = append([]string{}, p.Tags...)
	}
	return p
}

func copyBatchJob(j api.BatchJob) api.BatchJob {
	if j.Prompts != nil {
		j.Prompts = append([]api.BatchPromptItem{}, j.Prompts...)
	}
	if j.StartedAt != nil {
		t := *j.StartedAt
		j.StartedAt = &t
	}
	if j.CompletedAt != nil {
		t := *j.CompletedAt
		j.CompletedAt = &t
	}
	return j
}
