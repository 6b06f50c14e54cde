package integration

import (
	"encoding/json"

	"github.com/hibiken/asynq"
)

const (
	TaskAddToList         = "integrations.list.add"
	TaskSyncToCRM         = "integrations.crm.sync"
	TaskTrackCreation     = "integrations.analytics.track"
	TaskTriggerAutomation = "integrations.automation.trigger"
	TaskImportCompleted   = "imports.completed.notify"
	TaskImportStats       = "imports.stats.update"
)

type AddToListPayload struct {
	Lead LeadRef `json:"lead"`
	List string  `json:"list"`
}

type LeadPayload struct {
	Lead LeadRef `json:"lead"`
}

type AutomationPayload struct {
	Lead LeadRef `json:"lead"`
	Kind string  `json:"kind"`
}

type ImportPayload struct {
	Summary ImportSummary `json:"summary"`
}

func NewAddToListTask(payload AddToListPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskAddToList, data), nil
}

func ParseAddToListPayload(task *asynq.Task) (AddToListPayload, error) {
	var payload AddToListPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return AddToListPayload{}, err
	}
	return payload, nil
}

func NewLeadTask(taskType string, payload LeadPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(taskType, data), nil
}

func ParseLeadPayload(task *asynq.Task) (LeadPayload, error) {
	var payload LeadPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return LeadPayload{}, err
	}
	return payload, nil
}

func NewAutomationTask(payload AutomationPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskTriggerAutomation, data), nil
}

func ParseAutomationPayload(task *asynq.Task) (AutomationPayload, error) {
	var payload AutomationPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return AutomationPayload{}, err
	}
	return payload, nil
}

func NewImportTask(taskType string, payload ImportPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(taskType, data), nil
}

func ParseImportPayload(task *asynq.Task) (ImportPayload, error) {
	var payload ImportPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return ImportPayload{}, err
	}
	return payload, nil
}
