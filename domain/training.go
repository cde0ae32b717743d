package domain

import (
	"errors"
	"time"

	"gorm.io/datatypes"
)

type TrainingStatus string

const (
	TrainingQueued    TrainingStatus = "queued"
	TrainingRunning   TrainingStatus = "running"
	TrainingCompleted TrainingStatus = "completed"
	TrainingFailed    TrainingStatus = "failed"
	TrainingCancelled TrainingStatus = "cancelled"
)

// Finished reports whether the job reached a terminal status.
func (s TrainingStatus) Finished() bool {
	return s == TrainingCompleted || s == TrainingFailed || s == TrainingCancelled
}

var ErrTrainingJobNotFound = errors.New("training job not found")

type TrainingJob struct {
	ID          string         `gorm:"column:id;primaryKey" json:"id"`
	Environment string         `gorm:"column:environment;not null;index" json:"environment"`
	Policy      string         `gorm:"column:policy;not null" json:"policy"`
	Episodes    int            `gorm:"column:episodes;not null" json:"episodes"`
	MaxSteps    int            `gorm:"column:max_steps" json:"max_steps,omitempty"`
	Seed        *int64         `gorm:"column:seed" json:"seed,omitempty"`
	Status      TrainingStatus `gorm:"column:status;not null;index" json:"status"`
	CreatedBy   string         `gorm:"column:created_by" json:"created_by,omitempty"`

	EpisodesCompleted int     `gorm:"column:episodes_completed" json:"episodes_completed"`
	FailedEpisodes    int     `gorm:"column:failed_episodes" json:"failed_episodes"`
	TotalSteps        int     `gorm:"column:total_steps" json:"total_steps"`
	MeanReward        float64 `gorm:"column:mean_reward" json:"mean_reward"`
	StdReward         float64 `gorm:"column:std_reward" json:"std_reward"`
	MinReward         float64 `gorm:"column:min_reward" json:"min_reward"`
	MaxReward         float64 `gorm:"column:max_reward" json:"max_reward"`

	Weights        datatypes.JSONMap             `gorm:"column:weights;type:jsonb" json:"weights,omitempty"`
	EpisodeRewards datatypes.JSONType[[]float64] `gorm:"column:episode_rewards;type:jsonb" json:"episode_rewards"`
	FinalKPIs      datatypes.JSON                `gorm:"column:final_kpis;type:jsonb" json:"final_kpis,omitempty"`
	Error          string                        `gorm:"column:error" json:"error,omitempty"`

	CreatedAt  time.Time  `gorm:"column:created_at;autoCreateTime" json:"created_at"`
	UpdatedAt  time.Time  `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`
	StartedAt  *time.Time `gorm:"column:started_at" json:"started_at,omitempty"`
	FinishedAt *time.Time `gorm:"column:finished_at" json:"finished_at,omitempty"`
}

func (TrainingJob) TableName() string {
	return "training_jobs"
}

type TrainingJobFilter struct {
	Environment string
	Status      TrainingStatus
	Limit       int
}

// TrainingProgress is the short-lived snapshot published while a job runs.
type TrainingProgress struct {
	JobID             string         `json:"job_id"`
	Status            TrainingStatus `json:"status"`
	EpisodesCompleted int            `json:"episodes_completed"`
	Episodes          int            `json:"episodes"`
	LastReward        float64        `json:"last_reward"`
	MeanReward        float64        `json:"mean_reward"`
	UpdatedAt         time.Time      `json:"updated_at"`
}
