package server

import (
	"sync"
	"testing"
)

func TestJobManager_CreateJob(t *testing.T) {
	jm := NewJobManager()

	config := JobConfig{
		InputPath:     "in.json",
		Alpha:         0.5,
		Lambda:        1,
		MaxIterations: 100,
	}

	job := jm.CreateJob(config)

	if job.ID == "" {
		t.Error("Job ID should not be empty")
	}
	if job.State != StatePending {
		t.Errorf("Expected pending state, got %s", job.State)
	}
	if job.Config.InputPath != "in.json" {
		t.Errorf("Config.InputPath = %q, want %q", job.Config.InputPath, "in.json")
	}
	if job.StartTime.IsZero() {
		t.Error("StartTime should be set")
	}
}

func TestJobManager_CreateJobUniqueIDs(t *testing.T) {
	jm := NewJobManager()

	seen := make(map[string]bool)
	for i := 0; i < 50; i++ {
		job := jm.CreateJob(JobConfig{InputPath: "in.json"})
		if seen[job.ID] {
			t.Fatalf("Duplicate job ID: %s", job.ID)
		}
		seen[job.ID] = true
	}
}

func TestJobManager_GetJob(t *testing.T) {
	jm := NewJobManager()
	job := jm.CreateJob(JobConfig{InputPath: "in.json"})

	got, exists := jm.GetJob(job.ID)
	if !exists {
		t.Fatal("Job should exist")
	}
	if got.ID != job.ID {
		t.Errorf("ID = %q, want %q", got.ID, job.ID)
	}

	if _, exists := jm.GetJob("nonexistent"); exists {
		t.Error("Nonexistent job should not be found")
	}
}

func TestJobManager_GetJobReturnsSnapshot(t *testing.T) {
	jm := NewJobManager()
	job := jm.CreateJob(JobConfig{InputPath: "in.json"})

	before, _ := jm.GetJob(job.ID)
	jm.UpdateJob(job.ID, func(j *Job) {
		j.State = StateRunning
		j.Iterations = 7
	})

	// The earlier snapshot must not observe the update.
	if before.Iterations != 0 {
		t.Errorf("Snapshot Iterations = %d, want 0", before.Iterations)
	}
	if before.State != StatePending {
		t.Errorf("Snapshot State = %s, want pending", before.State)
	}

	// Mutating a snapshot must not leak into the stored job.
	before.State = StateFailed
	after, _ := jm.GetJob(job.ID)
	if after.State != StateRunning {
		t.Errorf("Stored State = %s, want running", after.State)
	}

	listed := jm.ListJobs()
	listed[0].Iterations = 99
	again, _ := jm.GetJob(job.ID)
	if again.Iterations != 7 {
		t.Errorf("Stored Iterations = %d, want 7", again.Iterations)
	}
}

func TestJobManager_ListJobs(t *testing.T) {
	jm := NewJobManager()

	if len(jm.ListJobs()) != 0 {
		t.Error("New manager should have no jobs")
	}

	jm.CreateJob(JobConfig{InputPath: "a.json"})
	jm.CreateJob(JobConfig{InputPath: "b.json"})

	if got := len(jm.ListJobs()); got != 2 {
		t.Errorf("Expected 2 jobs, got %d", got)
	}
}

func TestJobManager_UpdateJob(t *testing.T) {
	jm := NewJobManager()
	job := jm.CreateJob(JobConfig{InputPath: "in.json"})

	err := jm.UpdateJob(job.ID, func(j *Job) {
		j.State = StateRunning
		j.Iterations = 10
		j.Objective = 0.42
	})
	if err != nil {
		t.Fatalf("UpdateJob failed: %v", err)
	}

	got, _ := jm.GetJob(job.ID)
	if got.State != StateRunning {
		t.Errorf("State = %s, want running", got.State)
	}
	if got.Iterations != 10 {
		t.Errorf("Iterations = %d, want 10", got.Iterations)
	}
	if got.Objective != 0.42 {
		t.Errorf("Objective = %v, want 0.42", got.Objective)
	}

	if err := jm.UpdateJob("nonexistent", func(j *Job) {}); err == nil {
		t.Error("Expected error for unknown job")
	}
}

func TestJobManager_GetRunningJobs(t *testing.T) {
	jm := NewJobManager()

	a := jm.CreateJob(JobConfig{InputPath: "a.json"})
	jm.CreateJob(JobConfig{InputPath: "b.json"})
	c := jm.CreateJob(JobConfig{InputPath: "c.json"})

	jm.UpdateJob(a.ID, func(j *Job) { j.State = StateRunning })
	jm.UpdateJob(c.ID, func(j *Job) { j.State = StateCompleted })

	running := jm.GetRunningJobs()
	if len(running) != 1 {
		t.Fatalf("Expected 1 running job, got %d", len(running))
	}
	if running[0].ID != a.ID {
		t.Errorf("Running job = %s, want %s", running[0].ID, a.ID)
	}
}

func TestJobManager_ConcurrentAccess(t *testing.T) {
	jm := NewJobManager()
	job := jm.CreateJob(JobConfig{InputPath: "in.json"})

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for k := 0; k < 100; k++ {
				jm.UpdateJob(job.ID, func(j *Job) { j.Iterations++ })
				jm.GetJob(job.ID)
				jm.ListJobs()
			}
		}()
	}
	wg.Wait()

	got, _ := jm.GetJob(job.ID)
	if got.Iterations != 1000 {
		t.Errorf("Iterations = %d, want 1000", got.Iterations)
	}
}
