package db

// Repositories provides access to all database repositories
type Repositories struct {
	Experiences *ExperienceRepository
	Media       *MediaRepository
}

// NewRepositories creates a new repository collection
func NewRepositories(db *DB) *Repositories {
	return &Repositories{
		Experiences: NewExperienceRepository(db),
		Media:       NewMediaRepository(db),
	}
}
