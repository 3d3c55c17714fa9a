package state

import (
	"genstudio/internal/api"
)

func onBlock[T Entity](s *Store, op Op, kind Kind, id string, pick func(*AppState) *ListBlock[T], fn func(*ListBlock[T]) bool) bool {
	return s.mutate(op, kind, id, func(st *AppState) bool {
		return fn(pick(st))
	})
}

func promptsOf(st *AppState) *ListBlock[api.Prompt]         { return &st.Prompts }
func generationsOf(st *AppState) *ListBlock[api.Generation] { return &st.Generations }
func batchJobsOf(st *AppState) *ListBlock[api.BatchJob]     { return &st.BatchJobs }
func imagesOf(st *AppState) *ListBlock[api.Image]           { return &st.Images }

// SetPrompts replaces the prompt list from an authoritative fetch.
func (s *Store) SetPrompts(list []api.Prompt, total int64, page int) {
	s.SetPromptsPage(list, total, page, 0)
}

// SetPromptsPage is SetPrompts that also records the page size, so one fetch
// yields one change.
func (s *Store) SetPromptsPage(list []api.Prompt, total int64, page, pageSize int) {
	prompts := make([]api.Prompt, len(list))
	for i, p := range list {
		prompts[i] = copyPrompt(p)
	}
	onBlock(s, OpSet, KindPrompts, "", promptsOf, func(b *ListBlock[api.Prompt]) bool {
		b.set(prompts, total, page, pageSize)
		return true
	})
}

// AddPrompt prepends a prompt and increments the total.
func (s *Store) AddPrompt(p api.Prompt) {
	if p.Tags == nil {
		p.Tags = []string{}
	}
	onBlock(s, OpAdd, KindPrompts, p.ID, promptsOf, func(b *ListBlock[api.Prompt]) bool {
		return b.prepend(copyPrompt(p))
	})
}

// UpdatePrompt replaces the prompt with the same id. Unknown ids are ignored.
func (s *Store) UpdatePrompt(p api.Prompt) bool {
	return onBlock(s, OpUpdate, KindPrompts, p.ID, promptsOf, func(b *ListBlock[api.Prompt]) bool {
		return b.replace(copyPrompt(p))
	})
}

// RemovePrompt deletes a prompt and decrements the total. Unknown ids are ignored.
func (s *Store) RemovePrompt(id string) bool {
	return onBlock(s, OpRemove, KindPrompts, id, promptsOf, func(b *ListBlock[api.Prompt]) bool {
		return b.remove(id)
	})
}

// SetCurrentPrompt selects a prompt; nil clears the selection.
func (s *Store) SetCurrentPrompt(p *api.Prompt) {
	id := ""
	if p != nil {
		id = p.ID
		cp := copyPrompt(*p)
		p = &cp
	}
	onBlock(s, OpSelect, KindPrompts, id, promptsOf, func(b *ListBlock[api.Prompt]) bool {
		b.choose(p)
		return true
	})
}

// SetCategories replaces the cached prompt categories.
func (s *Store) SetCategories(categories []string) {
	s.mutate(OpTaxonomy, KindPrompts, "", func(st *AppState) bool {
		st.PromptCategories = append([]string{}, categories...)
		return true
	})
}

// SetTags replaces the cached prompt tags.
func (s *Store) SetTags(tags []string) {
	s.mutate(OpTaxonomy, KindPrompts, "", func(st *AppState) bool {
		st.PromptTags = append([]string{}, tags...)
		return true
	})
}

// SetGenerations replaces the generation list from an authoritative fetch.
func (s *Store) SetGenerations(list []api.Generation, total int64, page int) {
	s.SetGenerationsPage(list, total, page, 0)
}

// SetGenerationsPage is SetGenerations that also records the page size, so one fetch
// yields one change.
func (s *Store) SetGenerationsPage(list []api.Generation, total int64, page, pageSize int) {
	onBlock(s, OpSet, KindGenerations, "", generationsOf, func(b *ListBlock[api.Generation]) bool {
		b.set(list, total, page, pageSize)
		return true
	})
}

// AddGeneration prepends a generation and increments the total.
func (s *Store) AddGeneration(g api.Generation) {
	onBlock(s, OpAdd, KindGenerations, g.ID, generationsOf, func(b *ListBlock[api.Generation]) bool {
		return b.prepend(g)
	})
}

// AddGenerations prepends gens as one change so they end up at the head of
// the list in the given order.
func (s *Store) AddGenerations(gens []api.Generation) {
	if len(gens) == 0 {
		return
	}
	onBlock(s, OpAdd, KindGenerations, "", generationsOf, func(b *ListBlock[api.Generation]) bool {
		for i := len(gens) - 1; i >= 0; i-- {
			b.prepend(gens[i])
		}
		return true
	})
}

// UpdateGeneration replaces the generation with the same id.
func (s *Store) UpdateGeneration(g api.Generation) bool {
	return onBlock(s, OpUpdate, KindGenerations, g.ID, generationsOf, func(b *ListBlock[api.Generation]) bool {
		return b.replace(g)
	})
}

// RemoveGeneration deletes a generation and decrements the total.
func (s *Store) RemoveGeneration(id string) bool {
	return onBlock(s, OpRemove, KindGenerations, id, generationsOf, func(b *ListBlock[api.Generation]) bool {
		return b.remove(id)
	})
}

// SetCurrentGeneration selects a generation; nil clears the selection.
func (s *Store) SetCurrentGeneration(g *api.Generation) {
	id := ""
	if g != nil {
		id = g.ID
	}
	onBlock(s, OpSelect, KindGenerations, id, generationsOf, func(b *ListBlock[api.Generation]) bool {
		b.choose(g)
		return true
	})
}

// SetBatchJobs replaces the batch job list from an authoritative fetch.
func (s *Store) SetBatchJobs(list []api.BatchJob, total int64, page int) {
	s.SetBatchJobsPage(list, total, page, 0)
}

// SetBatchJobsPage is SetBatchJobs that also records the page size, so one fetch
// yields one change.
func (s *Store) SetBatchJobsPage(list []api.BatchJob, total int64, page, pageSize int) {
	jobs := make([]api.BatchJob, len(list))
	for i, job := range list {
		job = copyBatchJob(job)
		job.ClampProgress()
		jobs[i] = job
	}
	onBlock(s, OpSet, KindBatchJobs, "", batchJobsOf, func(b *ListBlock[api.BatchJob]) bool {
		b.set(jobs, total, page, pageSize)
		return true
	})
}

// AddBatchJob prepends a batch job and increments the total.
func (s *Store) AddBatchJob(job api.BatchJob) {
	job = copyBatchJob(job)
	job.ClampProgress()
	onBlock(s, OpAdd, KindBatchJobs, job.ID, batchJobsOf, func(b *ListBlock[api.BatchJob]) bool {
		return b.prepend(job)
	})
}

// UpdateBatchJob replaces the batch job with the same id, clamping its progress.
func (s *Store) UpdateBatchJob(job api.BatchJob) bool {
	job = copyBatchJob(job)
	job.ClampProgress()
	return onBlock(s, OpUpdate, KindBatchJobs, job.ID, batchJobsOf, func(b *ListBlock[api.BatchJob]) bool {
		return b.replace(job)
	})
}

// MutateBatchJob applies fn to the stored job atomically and clamps the
// result. fn must not call back into the store. It reports the job after the
// change and whether the id was found.
func (s *Store) MutateBatchJob(id string, fn func(*api.BatchJob)) (api.BatchJob, bool) {
	var out api.BatchJob
	found := onBlock(s, OpUpdate, KindBatchJobs, id, batchJobsOf, func(b *ListBlock[api.BatchJob]) bool {
		i := b.index(id)
		if i < 0 {
			return false
		}
		job := b.List[i]
		fn(&job)
		job.ID = id
		job.ClampProgress()
		b.List[i] = job
		b.syncCurrent()
		out = copyBatchJob(job)
		return true
	})
	return out, found
}

// ReplaceBatchJob swaps the entry under oldID for job, keeping its position.
// When oldID is absent job is not inserted.
func (s *Store) ReplaceBatchJob(oldID string, job api.BatchJob) bool {
	job = copyBatchJob(job)
	job.ClampProgress()
	return onBlock(s, OpUpdate, KindBatchJobs, job.ID, batchJobsOf, func(b *ListBlock[api.BatchJob]) bool {
		i := b.index(oldID)
		if i < 0 {
			return false
		}
		if dup := b.index(job.ID); dup >= 0 && dup != i {
			b.List = append(b.List[:dup:dup], b.List[dup+1:]...)
			if dup < i {
				i--
			}
			if b.Total > 0 {
				b.Total--
			}
		}
		b.List[i] = job
		if b.Current != nil && (*b.Current).Identity() == oldID {
			cp := job
			b.Current = &cp
		}
		return true
	})
}

// RemoveBatchJob deletes a batch job and decrements the total.
func (s *Store) RemoveBatchJob(id string) bool {
	return onBlock(s, OpRemove, KindBatchJobs, id, batchJobsOf, func(b *ListBlock[api.BatchJob]) bool {
		return b.remove(id)
	})
}

// SetCurrentBatchJob selects a batch job; nil clears the selection.
func (s *Store) SetCurrentBatchJob(job *api.BatchJob) {
	id := ""
	if job != nil {
		id = job.ID
		cp := copyBatchJob(*job)
		job = &cp
	}
	onBlock(s, OpSelect, KindBatchJobs, id, batchJobsOf, func(b *ListBlock[api.BatchJob]) bool {
		b.choose(job)
		return true
	})
}

// BatchJob returns a copy of one tracked job.
func (s *Store) BatchJob(id string) (api.BatchJob, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.state.BatchJobs.Find(id)
	if !ok {
		return api.BatchJob{}, false
	}
	return copyBatchJob(job), true
}

// SetImages replaces the image list from an authoritative fetch.
func (s *Store) SetImages(list []api.Image, total int64, page int) {
	s.SetImagesPage(list, total, page, 0)
}

// SetImagesPage is SetImages that also records the page size, so one fetch
// yields one change.
func (s *Store) SetImagesPage(list []api.Image, total int64, page, pageSize int) {
	onBlock(s, OpSet, KindImages, "", imagesOf, func(b *ListBlock[api.Image]) bool {
		b.set(list, total, page, pageSize)
		return true
	})
}

// AddImage prepends an image and increments the total.
func (s *Store) AddImage(img api.Image) {
	onBlock(s, OpAdd, KindImages, img.ID, imagesOf, func(b *ListBlock[api.Image]) bool {
		return b.prepend(img)
	})
}

// UpdateImage replaces the image with the same id.
func (s *Store) UpdateImage(img api.Image) bool {
	return onBlock(s, OpUpdate, KindImages, img.ID, imagesOf, func(b *ListBlock[api.Image]) bool {
		return b.replace(img)
	})
}

// RemoveImage deletes an image and decrements the total.
func (s *Store) RemoveImage(id string) bool {
	return onBlock(s, OpRemove, KindImages, id, imagesOf, func(b *ListBlock[api.Image]) bool {
		return b.remove(id)
	})
}

// SetCurrentImage selects an image; nil clears the selection.
func (s *Store) SetCurrentImage(img *api.Image) {
	id := ""
	if img != nil {
		id = img.ID
	}
	onBlock(s, OpSelect, KindImages, id, imagesOf, func(b *ListBlock[api.Image]) bool {
		b.choose(img)
		return true
	})
}
