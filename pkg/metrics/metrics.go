package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	// Steps applied across every environment instance, by environment
	EnvSteps = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "clinicalgym_env_steps_total",
		Help: "Total number of environment steps applied",
	}, []string{"environment"})

	EpisodesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "clinicalgym_episodes_total",
		Help: "Episodes run by training jobs and orchestrations",
	}, []string{"environment", "outcome"})

	EpisodeReward = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "clinicalgym_episode_reward",
		Help:    "Total reward collected per episode",
		Buckets: prometheus.LinearBuckets(-20, 5, 12),
	}, []string{"environment"})

	TrainingJobs = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "clinicalgym_training_jobs_total",
		Help: "Training jobs by final status",
	}, []string{"status"})

	TrainingJobDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "clinicalgym_training_job_duration_seconds",
		Help:    "Wall time of finished training jobs",
		Buckets: prometheus.ExponentialBuckets(0.01, 4, 10),
	})

	ActiveSessions = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "clinicalgym_active_sessions",
		Help: "Interactive sessions currently held in memory",
	})

	StepLatency = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "clinicalgym_session_step_latency_seconds",
		Help:    "Latency of the session step handler",
		Buckets: prometheus.DefBuckets,
	})
)

func Init() {
	prometheus.MustRegister(
		EnvSteps,
		EpisodesTotal,
		EpisodeReward,
		TrainingJobs,
		TrainingJobDuration,
		ActiveSessions,
		StepLatency,
	)
}
