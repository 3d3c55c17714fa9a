package state

// Entity is anything held in a list block.
type Entity interface {
	Identity() string
}

// ListBlock is one entity kind's page of results plus its bookkeeping.
// List is newest-first.
type ListBlock[T Entity] struct {
	List        []T   `json:"list"`
	Total       int64 `json:"total"`
	CurrentPage int   `json:"current_page"`
	PageSize    int   `json:"page_size"`
	Current     *T    `json:"current,omitempty"`
}

func newListBlock[T Entity](pageSize int) ListBlock[T] {
	return ListBlock[T]{List: []T{}, CurrentPage: 1, PageSize: pageSize}
}

func (b *ListBlock[T]) index(id string) int {
	if id == "" {
		return -1
	}
	for i, item := range b.List {
		if item.Identity() == id {
			return i
		}
	}
	return -1
}

// Find returns the entry with the given id.
func (b ListBlock[T]) Find(id string) (T, bool) {
	if i := b.index(id); i >= 0 {
		return b.List[i], true
	}
	var zero T
	return zero, false
}

// set replaces the page. Zero page or pageSize keep the current values.
func (b *ListBlock[T]) set(items []T, total int64, page, pageSize int) {
	b.List = dedupe(items)
	b.Total = total
	if page > 0 {
		b.CurrentPage = page
	}
	if pageSize > 0 {
		b.PageSize = pageSize
	}
	b.syncCurrent()
}

// prepend inserts item at the head. An id already present is replaced in
// place and the total is left alone.
func (b *ListBlock[T]) prepend(item T) bool {
	if i := b.index(item.Identity()); i >= 0 {
		b.List[i] = item
		b.syncCurrent()
		return true
	}
	b.List = append([]T{item}, b.List...)
	b.Total++
	return true
}

func (b *ListBlock[T]) replace(item T) bool {
	i := b.index(item.Identity())
	if i < 0 {
		return false
	}
	b.List[i] = item
	b.syncCurrent()
	return true
}

func (b *ListBlock[T]) remove(id string) bool {
	i := b.index(id)
	if i < 0 {
		return false
	}
	b.List = append(b.List[:i:i], b.List[i+1:]...)
	if b.Total > 0 {
		b.Total--
	}
	if b.Current != nil && (*b.Current).Identity() == id {
		b.Current = nil
	}
	return true
}

func (b *ListBlock[T]) choose(item *T) {
	if item == nil {
		b.Current = nil
		return
	}
	cp := *item
	b.Current = &cp
}

// syncCurrent keeps the selection pointing at the latest copy of its entity.
func (b *ListBlock[T]) syncCurrent() {
	if b.Current == nil {
		return
	}
	if i := b.index((*b.Current).Identity()); i >= 0 {
		cp := b.List[i]
		b.Current = &cp
	}
}

func (b ListBlock[T]) clone(copyItem func(T) T) ListBlock[T] {
	out := b
	out.List = make([]T, len(b.List))
	for i, item := range b.List {
		out.List[i] = copyItem(item)
	}
	if b.Current != nil {
		cp := copyItem(*b.Current)
		out.Current = &cp
	}
	return out
}

func dedupe[T Entity](items []T) []T {
	out := make([]T, 0, len(items))
	seen := make(map[string]struct{}, len(items))
	for _, item := range items {
		id := item.Identity()
		if _, ok := seen[id]; ok && id != "" {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, item)
	}
	return out
}
