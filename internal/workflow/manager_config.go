package workflow

import "astropitography/internal/queue"

// ConfigureStages registers the concrete stage handlers the workflow will run.
func (m *Manager) ConfigureStages(set StageSet) {
	foreground := &laneState{kind: laneForeground, name: "foreground", cameraGated: true}
	background := &laneState{kind: laneBackground, name: "background"}

	if set.Capturer != nil {
		foreground.stages = append(foreground.stages, pipelineStage{
			name:             "capture",
			handler:          set.Capturer,
			startStatus:      queue.StatusPending,
			processingStatus: queue.StatusCapturing,
			doneStatus:       queue.StatusCaptured,
		})
	}
	// Everything after capture runs in the background lane so the camera is
	// free for the next target as soon as its frames are on disk.
	solverStart := queue.StatusCaptured
	if set.Converter != nil {
		background.stages = append(background.stages, pipelineStage{
			name:             "convert",
			handler:          set.Converter,
			startStatus:      queue.StatusCaptured,
			processingStatus: queue.StatusConverting,
			doneStatus:       queue.StatusConverted,
		})
		solverStart = queue.StatusConverted
	}
	organizerStart := solverStart
	if set.Solver != nil {
		background.stages = append(background.stages, pipelineStage{
			name:             "platesolve",
			handler:          set.Solver,
			startStatus:      solverStart,
			processingStatus: queue.StatusSolving,
			doneStatus:       queue.StatusSolved,
		})
		organizerStart = queue.StatusSolved
	}
	if set.Organizer != nil {
		background.stages = append(background.stages, pipelineStage{
			name:             "organize",
			handler:          set.Organizer,
			startStatus:      organizerStart,
			processingStatus: queue.StatusOrganizing,
			doneStatus:       queue.StatusCompleted,
		})
	}

	lanes := make(map[laneKind]*laneState)
	order := make([]laneKind, 0, 2)

	if len(foreground.stages) > 0 {
		foreground.finalize()
		lanes[foreground.kind] = foreground
		order = append(order, foreground.kind)
	}
	if len(background.stages) > 0 {
		background.finalize()
		lanes[background.kind] = background
		order = append(order, background.kind)
	}

	for _, lane := range lanes {
		if lane == nil {
			continue
		}
		lane.runReclaimer = len(lane.processingStatuses) > 0
	}

	m.mu.Lock()
	m.lanes = lanes
	m.laneOrder = order
	m.mu.Unlock()
}
