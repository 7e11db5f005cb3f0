package models

import "time"

type Project struct {
	ProjectID   string    `json:"project_id"`
	Name        string    `json:"name"`
	URL         string    `json:"url"`
	Icon        string    `json:"icon"`
	Description string    `json:"description"`
	Created     time.Time `json:"created_at"`
}

type ProjectPatch struct {
	Name        *string `json:"name"`
	URL         *string `json:"url"`
	Icon        *string `json:"icon"`
	Description *string `json:"description"`
}

func (p ProjectPatch) Apply(project Project) Project {
	if p.Name != nil {
		project.Name = *p.Name
	}
	if p.URL != nil {
		project.URL = *p.URL
	}
	if p.Icon != nil {
		project.Icon = *p.Icon
	}
	if p.Description != nil {
		project.Description = *p.Description
	}
	return project
}

type AuditLog struct {
	AuditID     string    `json:"audit_id"`
	ActorUserID string    `json:"actor_user_id"`
	ActionType  string    `json:"action_type"`
	TargetType  string    `json:"target_type"`
	TargetID    string    `json:"target_id"`
	CreatedAt   time.Time `json:"created_at"`
	IP          string    `json:"ip"`
	UserAgent   string    `json:"user_agent"`
}
