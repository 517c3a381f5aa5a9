package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stemsi/exstem-proctor/internal/model"
)

// DirectoryRepository is a read-only view of the user/group directory.
type DirectoryRepository struct {
	pool *pgxpool.Pool
}

// NewDirectoryRepository creates a new DirectoryRepository.
func NewDirectoryRepository(pool *pgxpool.Pool) *DirectoryRepository {
	return &DirectoryRepository{pool: pool}
}

// ListStudents returns students matching the group/subgroup filters.
// An empty filter matches everyone.
func (r *DirectoryRepository) ListStudents(ctx context.Context, groups, subgroups []string) ([]model.Student, error) {
	if groups == nil {
		groups = []string{}
	}
	if subgroups == nil {
		subgroups = []string{}
	}

	rows, err := r.pool.Query(ctx,
		`SELECT id, name, COALESCE(roll_no, ''), COALESCE(group_name, ''), COALESCE(subgroup_name, '')
		 FROM users
		 WHERE role = 'student'
		   AND (cardinality($1::text[]) = 0 OR group_name = ANY($1::text[]))
		   AND (cardinality($2::text[]) = 0 OR subgroup_name = ANY($2::text[]))
		 ORDER BY id`, groups, subgroups)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var students []model.Student
	for rows.Next() {
		var s model.Student
		if err := rows.Scan(&s.ID, &s.Name, &s.RollNo, &s.Group, &s.Subgroup); err != nil {
			return nil, err
		}
		students = append(students, s)
	}
	return students, rows.Err()
}
