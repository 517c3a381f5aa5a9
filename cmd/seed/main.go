package main

import (
	"context"
	"flag"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stemsi/exstem-proctor/internal/config"
	"github.com/stemsi/exstem-proctor/internal/database"
	"github.com/stemsi/exstem-proctor/internal/logger"
	"github.com/stemsi/exstem-proctor/internal/model"
	"github.com/stemsi/exstem-proctor/internal/service"
)

var names = []string{
	"Budi Santoso", "Siti Aminah", "Andi Pratama", "Rina Wati", "Joko Susilo",
	"Ayu Lestari", "Dodi Kusuma", "Eka Putri", "Fahri Hamzah", "Gita Savitri",
	"Hendra Gunawan", "Ika Sari", "Jamal Mirdad", "Kiki Fatmala", "Lukman Hakim",
	"Maya Septiana", "Nanda Pratama", "Oki Setiana", "Putri Dian", "Qori Maharani",
}

// seed creates a running demo exam with its author and a class of students,
// then prints tokens signed with JWT_SECRET so the API can be driven by hand.
func main() {
	var (
		studentCount int
		group        string
		subgroup     string
		threshold    int
		duration     int
	)
	flag.IntVar(&studentCount, "students", 10, "Number of students to create")
	flag.StringVar(&group, "group", "XII", "Student group")
	flag.StringVar(&subgroup, "subgroup", "TKJ-2", "Student subgroup")
	flag.IntVar(&threshold, "threshold", 3, "Violation threshold of the demo exam")
	flag.IntVar(&duration, "duration", 60, "Exam duration in minutes")
	flag.Parse()

	cfg := config.Load()
	log := logger.Setup(cfg.LogLevel, cfg.LogFormat)
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	pool, err := database.NewPostgresPool(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to PostgreSQL")
	}
	defer pool.Close()

	auth := service.NewAuthService(cfg.JWTSecret, cfg.JWTExpiry)

	var teacherID int
	if err := pool.QueryRow(ctx,
		`INSERT INTO users (name, role) VALUES ('Demo Teacher', 'teacher') RETURNING id`,
	).Scan(&teacherID); err != nil {
		log.Fatal().Err(err).Msg("Failed to create teacher")
	}

	questionIDs, err := seedQuestions(ctx, pool)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create questions")
	}

	now := time.Now()
	var examID uuid.UUID
	if err := pool.QueryRow(ctx,
		`INSERT INTO exams (title, author_id, question_ids, duration_minutes, start_time, end_time,
		                    status, allowed_groups, violation_threshold)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9) RETURNING id`,
		"Demo Exam "+now.Format("2006-01-02 15:04"), teacherID, questionIDs, duration,
		now, now.Add(time.Duration(duration)*time.Minute), model.ExamStatusPublished,
		[]string{group}, threshold,
	).Scan(&examID); err != nil {
		log.Fatal().Err(err).Msg("Failed to create exam")
	}

	teacherToken, err := auth.IssueToken(&model.Principal{UserID: teacherID, Role: model.RoleTeacher, Name: "Demo Teacher"})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to sign teacher token")
	}

	fmt.Printf("=== Exam %s ===\n", examID)
	fmt.Printf("teacher %d: %s\n\n", teacherID, teacherToken)

	created := 0
	for i := 0; i < studentCount; i++ {
		p := model.Principal{
			Role:     model.RoleStudent,
			Name:     names[i%len(names)],
			RollNo:   fmt.Sprintf("%05d", i+1),
			Group:    group,
			Subgroup: subgroup,
		}
		if err := pool.QueryRow(ctx,
			`INSERT INTO users (name, role, roll_no, group_name, subgroup_name)
			 VALUES ($1, 'student', $2, $3, $4) RETURNING id`,
			p.Name, p.RollNo, p.Group, p.Subgroup,
		).Scan(&p.UserID); err != nil {
			fmt.Printf("Error creating student %s (%s): %v\n", p.Name, p.RollNo, err)
			continue
		}

		token, err := auth.IssueToken(&p)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to sign student token")
		}
		fmt.Printf("student %d %-18s %s\n", p.UserID, p.Name, token)
		created++
	}

	fmt.Printf("\nSeed completed! Created %d/%d students.\n", created, studentCount)
}

func seedQuestions(ctx context.Context, pool *pgxpool.Pool) ([]uuid.UUID, error) {
	questions := []model.Question{
		{QuestionText: "2 + 3 = ?", Options: []string{"4", "5", "6", "7"}, CorrectOption: 1, Subject: "Matematika", Difficulty: model.DifficultyEasy},
		{QuestionText: "7 x 8 = ?", Options: []string{"54", "56", "58", "64"}, CorrectOption: 1, Subject: "Matematika", Difficulty: model.DifficultyMedium},
		{QuestionText: "Satuan SI untuk gaya?", Options: []string{"Joule", "Watt", "Newton", "Pascal"}, CorrectOption: 2, Subject: "Fisika", Difficulty: model.DifficultyEasy},
		{QuestionText: "Port default HTTPS?", Options: []string{"80", "443", "22", "8080"}, CorrectOption: 1, Subject: "Jaringan", Difficulty: model.DifficultyMedium},
		{QuestionText: "Lapisan OSI untuk routing?", Options: []string{"Data Link", "Transport", "Network", "Session"}, CorrectOption: 2, Subject: "Jaringan", Difficulty: model.DifficultyHard},
	}

	ids := make([]uuid.UUID, 0, len(questions))
	for _, q := range questions {
		var id uuid.UUID
		err := pool.QueryRow(ctx,
			`INSERT INTO questions (question_text, options, correct_option, subject, difficulty)
			 VALUES ($1, $2, $3, $4, $5) RETURNING id`,
			q.QuestionText, q.Options, q.CorrectOption, q.Subject, q.Difficulty,
		).Scan(&id)
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, nil
}
