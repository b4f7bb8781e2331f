package orchestrator

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/taskmesh/core"
	"github.com/hupe1980/taskmesh/internal/testutil"
	"github.com/hupe1980/taskmesh/state"
)

func newOrchestratorWithAgent(t *testing.T, agentTypes ...string) *Orchestrator {
	t.Helper()
	o := New()
	for _, at := range agentTypes {
		require.NoError(t, o.RegisterAgent(testutil.NewStubAgent(at)))
	}
	return o
}

func TestRegisterAgent_Duplicate(t *testing.T) {
	o := New()
	require.NoError(t, o.RegisterAgent(testutil.NewStubAgent("worker")))

	err := o.RegisterAgent(testutil.NewStubAgent("worker"))
	var dup *core.DuplicateAgentError
	assert.ErrorAs(t, err, &dup)
}

func TestExecuteTask(t *testing.T) {
	o := newOrchestratorWithAgent(t, "worker")

	task, err := o.ExecuteTask(context.Background(), core.NewTask("worker", "noop", nil))
	require.NoError(t, err)
	assert.Equal(t, core.StatusCompleted, task.Status)
}

func TestExecuteTask_AgentNotFound(t *testing.T) {
	o := New()

	_, err := o.ExecuteTask(context.Background(), core.NewTask("ghost", "noop", nil))
	var nf *core.AgentNotFoundError
	assert.ErrorAs(t, err, &nf)
}

func TestExecuteTask_RetriesUntilSuccess(t *testing.T) {
	o := New()
	agent := testutil.NewStubAgent("worker")
	agent.FailFirst = 2
	agent.Err = errors.New("transient")
	require.NoError(t, o.RegisterAgent(agent))

	task, err := o.ExecuteTask(context.Background(), core.NewTask("worker", "noop", nil))
	require.NoError(t, err)
	assert.Equal(t, core.StatusCompleted, task.Status)
	assert.Equal(t, 2, task.RetryCount)
	assert.Equal(t, 3, agent.Calls())
}

func TestExecuteWorkflow_Sequential(t *testing.T) {
	o := New()
	var mu sync.Mutex
	var order []string
	agent := testutil.NewStubAgent("worker")
	agent.Fn = func(_ context.Context, task *core.Task) (*core.TaskOutput, error) {
		mu.Lock()
		order = append(order, task.ID)
		mu.Unlock()
		return &core.TaskOutput{Result: "ok"}, nil
	}
	require.NoError(t, o.RegisterAgent(agent))

	tasks := []*core.Task{
		testutil.NewTaskBuilder("worker", "step").ID("t1").Build(),
		testutil.NewTaskBuilder("worker", "step").ID("t2").Build(),
		testutil.NewTaskBuilder("worker", "step").ID("t3").Build(),
	}
	result, err := o.ExecuteWorkflow(context.Background(), tasks, core.StrategySequential)
	require.NoError(t, err)

	assert.Equal(t, core.WorkflowCompleted, result.Status)
	assert.Equal(t, []string{"t1", "t2", "t3"}, order)
	assert.False(t, result.Finished.IsZero())
}

func TestExecuteWorkflow_SequentialContinuesPastFailure(t *testing.T) {
	o := New()
	agent := testutil.NewStubAgent("worker")
	agent.Fn = func(_ context.Context, task *core.Task) (*core.TaskOutput, error) {
		if task.ID == "t1" {
			return nil, errors.New("boom")
		}
		return &core.TaskOutput{Result: "ok"}, nil
	}
	require.NoError(t, o.RegisterAgent(agent))

	tasks := []*core.Task{
		testutil.NewTaskBuilder("worker", "step").ID("t1").MaxRetries(0).Build(),
		testutil.NewTaskBuilder("worker", "step").ID("t2").Build(),
	}
	result, err := o.ExecuteWorkflow(context.Background(), tasks, core.StrategySequential)
	require.NoError(t, err)

	assert.Equal(t, core.WorkflowPartial, result.Status)
	assert.Equal(t, core.StatusFailed, tasks[0].Status)
	assert.Equal(t, core.StatusCompleted, tasks[1].Status)
}

func TestExecuteWorkflow_ParallelIsolatesFailures(t *testing.T) {
	o := New()
	agent := testutil.NewStubAgent("worker")
	agent.Fn = func(_ context.Context, task *core.Task) (*core.TaskOutput, error) {
		if task.ID == "bad" {
			return nil, errors.New("boom")
		}
		return &core.TaskOutput{Result: task.ID}, nil
	}
	require.NoError(t, o.RegisterAgent(agent))

	tasks := []*core.Task{
		testutil.NewTaskBuilder("worker", "step").ID("bad").MaxRetries(0).Build(),
		testutil.NewTaskBuilder("worker", "step").ID("ok-1").Build(),
		testutil.NewTaskBuilder("worker", "step").ID("ok-2").Build(),
	}
	result, err := o.ExecuteWorkflow(context.Background(), tasks, core.StrategyParallel)
	require.NoError(t, err)

	assert.Equal(t, core.WorkflowPartial, result.Status)
	assert.Equal(t, core.StatusFailed, tasks[0].Status)
	assert.Equal(t, core.StatusCompleted, tasks[1].Status)
	assert.Equal(t, core.StatusCompleted, tasks[2].Status)
}

func TestExecuteWorkflow_PriorityOrder(t *testing.T) {
	o := New()
	var mu sync.Mutex
	var order []string
	agent := testutil.NewStubAgent("worker")
	agent.Fn = func(_ context.Context, task *core.Task) (*core.TaskOutput, error) {
		mu.Lock()
		order = append(order, task.ID)
		mu.Unlock()
		return &core.TaskOutput{}, nil
	}
	require.NoError(t, o.RegisterAgent(agent))

	tasks := []*core.Task{
		testutil.NewTaskBuilder("worker", "step").ID("low").Priority(core.PriorityLow).Build(),
		testutil.NewTaskBuilder("worker", "step").ID("critical").Priority(core.PriorityCritical).Build(),
		testutil.NewTaskBuilder("worker", "step").ID("normal-1").Build(),
		testutil.NewTaskBuilder("worker", "step").ID("normal-2").Build(),
	}
	_, err := o.ExecuteWorkflow(context.Background(), tasks, core.StrategyPriority)
	require.NoError(t, err)

	// Stable sort keeps submission order for equal priorities.
	assert.Equal(t, []string{"critical", "normal-1", "normal-2", "low"}, order)
	// The caller's slice is untouched.
	assert.Equal(t, "low", tasks[0].ID)
}

func TestExecuteWorkflow_DependencyOrdering(t *testing.T) {
	o := New()
	var mu sync.Mutex
	finished := map[string]time.Time{}
	agent := testutil.NewStubAgent("worker")
	agent.Fn = func(_ context.Context, task *core.Task) (*core.TaskOutput, error) {
		time.Sleep(time.Millisecond)
		mu.Lock()
		finished[task.ID] = time.Now()
		mu.Unlock()
		return &core.TaskOutput{}, nil
	}
	require.NoError(t, o.RegisterAgent(agent))

	tasks := []*core.Task{
		testutil.NewTaskBuilder("worker", "step").ID("fetch").Build(),
		testutil.NewTaskBuilder("worker", "step").ID("analyze").DependsOn("fetch").Build(),
		testutil.NewTaskBuilder("worker", "step").ID("report").DependsOn("analyze").Build(),
		testutil.NewTaskBuilder("worker", "step").ID("archive").DependsOn("fetch").Build(),
	}
	result, err := o.ExecuteWorkflow(context.Background(), tasks, core.StrategyDependency)
	require.NoError(t, err)
	assert.Equal(t, core.WorkflowCompleted, result.Status)

	// A task never finishes before its dependencies.
	assert.True(t, finished["analyze"].After(finished["fetch"]))
	assert.True(t, finished["report"].After(finished["analyze"]))
	assert.True(t, finished["archive"].After(finished["fetch"]))
}

func TestExecuteWorkflow_DependencyCycle(t *testing.T) {
	o := newOrchestratorWithAgent(t, "worker")

	tasks := []*core.Task{
		testutil.NewTaskBuilder("worker", "step").ID("a").DependsOn("b").Build(),
		testutil.NewTaskBuilder("worker", "step").ID("b").DependsOn("a").Build(),
	}
	result, err := o.ExecuteWorkflow(context.Background(), tasks, core.StrategyDependency)

	var wfErr *core.WorkflowExecutionError
	require.ErrorAs(t, err, &wfErr)
	assert.ElementsMatch(t, []string{"a", "b"}, wfErr.StuckTasks)
	assert.Equal(t, core.WorkflowFailed, result.Status)
}

func TestExecuteWorkflow_UnroutableTask(t *testing.T) {
	o := newOrchestratorWithAgent(t, "worker")

	tasks := []*core.Task{
		testutil.NewTaskBuilder("worker", "step").Build(),
		testutil.NewTaskBuilder("ghost", "step").Build(),
	}
	result, err := o.ExecuteWorkflow(context.Background(), tasks, core.StrategySequential)

	var nf *core.AgentNotFoundError
	require.ErrorAs(t, err, &nf)
	assert.Equal(t, core.WorkflowFailed, result.Status)
}

func TestExecuteWorkflow_UnknownStrategy(t *testing.T) {
	o := newOrchestratorWithAgent(t, "worker")

	_, err := o.ExecuteWorkflow(context.Background(), []*core.Task{
		testutil.NewTaskBuilder("worker", "step").Build(),
	}, core.ExecutionStrategy("quantum"))
	var wfErr *core.WorkflowExecutionError
	assert.ErrorAs(t, err, &wfErr)
}

func TestExecuteWorkflow_ContextCancellation(t *testing.T) {
	o := New()
	started := make(chan struct{})
	var once sync.Once
	agent := testutil.NewStubAgent("worker")
	agent.Fn = func(ctx context.Context, task *core.Task) (*core.TaskOutput, error) {
		once.Do(func() { close(started) })
		<-ctx.Done()
		return nil, ctx.Err()
	}
	require.NoError(t, o.RegisterAgent(agent))

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		<-started
		cancel()
	}()

	tasks := []*core.Task{
		testutil.NewTaskBuilder("worker", "step").ID("t1").MaxRetries(0).Build(),
		testutil.NewTaskBuilder("worker", "step").ID("t2").MaxRetries(0).Build(),
	}
	result, err := o.ExecuteWorkflow(ctx, tasks, core.StrategySequential)
	require.NoError(t, err)

	assert.Equal(t, core.WorkflowCancelled, result.Status)
	for _, task := range tasks {
		assert.True(t, task.Status.IsTerminal(), string(task.Status))
		if task.Status == core.StatusCancelled {
			assert.Empty(t, task.Error)
			assert.NotEmpty(t, task.CancelReason)
		}
	}
}

func TestExecuteWorkflow_DependencyCheckpoints(t *testing.T) {
	store := state.NewInMemoryStore()
	o := New(func(opts *Options) { opts.Store = store })
	require.NoError(t, o.RegisterAgent(testutil.NewStubAgent("worker")))

	tasks := []*core.Task{
		testutil.NewTaskBuilder("worker", "step").ID("a").Build(),
		testutil.NewTaskBuilder("worker", "step").ID("b").DependsOn("a").Build(),
	}
	result, err := o.ExecuteWorkflow(context.Background(), tasks, core.StrategyDependency)
	require.NoError(t, err)

	cp, err := store.GetCheckpoint(result.ID + "-round-0")
	require.NoError(t, err)
	assert.Equal(t, core.StatusCompleted, cp.TaskStatus["a"])
}

func TestGetAgentStatus(t *testing.T) {
	o := newOrchestratorWithAgent(t, "worker", "writer")

	_, err := o.ExecuteTask(context.Background(), core.NewTask("worker", "noop", nil))
	require.NoError(t, err)

	status := o.GetAgentStatus()
	require.Len(t, status, 2)
	assert.Equal(t, 1, status["worker"].Metrics.TasksSucceeded)
	assert.Equal(t, 0, status["writer"].Metrics.TasksExecuted)
}

func TestShutdown(t *testing.T) {
	o := newOrchestratorWithAgent(t, "worker")

	_, err := o.ExecuteTask(context.Background(), core.NewTask("worker", "noop", nil))
	require.NoError(t, err)
	require.NoError(t, o.Shutdown())

	// The registry is cleared after shutdown.
	_, err = o.ExecuteTask(context.Background(), core.NewTask("worker", "noop", nil))
	var nf *core.AgentNotFoundError
	assert.ErrorAs(t, err, &nf)
}

func TestShutdown_StragglerCount(t *testing.T) {
	o := New(func(opts *Options) { opts.DrainTimeout = 150 * time.Millisecond })
	agent := testutil.NewStubAgent("worker")
	started := make(chan struct{}, 2)
	agent.Fn = func(ctx context.Context, task *core.Task) (*core.TaskOutput, error) {
		started <- struct{}{}
		if task.Type == "block" {
			<-ctx.Done()
			return nil, ctx.Err()
		}
		time.Sleep(30 * time.Millisecond)
		return &core.TaskOutput{Result: "ok"}, nil
	}
	require.NoError(t, o.RegisterAgent(agent))

	var wg sync.WaitGroup
	for _, taskType := range []string{"block", "quick"} {
		wg.Add(1)
		go func(taskType string) {
			defer wg.Done()
			tasks := []*core.Task{
				testutil.NewTaskBuilder("worker", taskType).MaxRetries(0).Build(),
			}
			_, _ = o.ExecuteWorkflow(context.Background(), tasks, core.StrategySequential)
		}(taskType)
	}
	<-started
	<-started

	// The quick workflow drains within the wait, so only the blocked one
	// is a straggler.
	err := o.Shutdown()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "1 workflows still running")
	wg.Wait()
}
