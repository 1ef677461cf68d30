package types

// TaskCategory identifies which model configuration a pipeline task resolves.
// Tasks in the same category share one provider/model binding.
type TaskCategory string

const (
	// TaskCore drives key-point extraction, experiment analysis, term
	// explanation, report generation, the author discussion role and Q&A.
	TaskCore TaskCategory = "core"
	// TaskTranslation drives summary and full-text translation.
	TaskTranslation TaskCategory = "translation"
	// TaskReview drives the moderator/critic/practitioner/reader roles.
	TaskReview TaskCategory = "review"
	// TaskRelatedWork drives the search-result summarization call.
	TaskRelatedWork TaskCategory = "related_work"
	// TaskVision drives page-image transcription; requires a multimodal model.
	TaskVision TaskCategory = "vision"
)

// TaskCategories lists every category the factory validates at startup.
func TaskCategories() []TaskCategory {
	return []TaskCategory{TaskCore, TaskTranslation, TaskReview, TaskRelatedWork, TaskVision}
}

// Valid reports whether c is a known task category.
func (c TaskCategory) Valid() bool {
	switch c {
	case TaskCore, TaskTranslation, TaskReview, TaskRelatedWork, TaskVision:
		return true
	}
	return false
}
