package domain

import (
	"github.com/yungbote/guildmind-backend/internal/domain/chat"
	"github.com/yungbote/guildmind-backend/internal/domain/docs"
	"github.com/yungbote/guildmind-backend/internal/domain/guilds"
	"github.com/yungbote/guildmind-backend/internal/domain/jobs"
)

type Guild = guilds.Guild
type Channel = guilds.Channel
type User = guilds.User

type Message = chat.Message
type MessageSession = chat.MessageSession

type Attachment = docs.Attachment
type DocumentChunk = docs.DocumentChunk

type Job = jobs.Job
type JobDeadLetter = jobs.JobDeadLetter
type EmbedderManifest = jobs.EmbedderManifest

const DeletedContent = chat.DeletedContent

const (
	SourceTypeImage    = docs.SourceTypeImage
	SourceTypePDF      = docs.SourceTypePDF
	SourceTypeText     = docs.SourceTypeText
	SourceTypeMarkdown = docs.SourceTypeMarkdown

	ProcessingPending    = docs.ProcessingPending
	ProcessingProcessing = docs.ProcessingProcessing
	ProcessingCompleted  = docs.ProcessingCompleted
	ProcessingFailed     = docs.ProcessingFailed
)

const (
	JobPriorityHigh    = jobs.PriorityHigh
	JobPriorityDefault = jobs.PriorityDefault
	JobPriorityLow     = jobs.PriorityLow

	JobStatusQueued    = jobs.StatusQueued
	JobStatusRunning   = jobs.StatusRunning
	JobStatusSucceeded = jobs.StatusSucceeded
	JobStatusDead      = jobs.StatusDead

	JobTypeSessionize          = jobs.TypeSessionize
	JobTypeEmbedSession        = jobs.TypeEmbedSession
	JobTypeReindexSessionFor   = jobs.TypeReindexSessionFor
	JobTypePurgeMessageVectors = jobs.TypePurgeMessageVectors
	JobTypePurgeChannelVectors = jobs.TypePurgeChannelVectors
	JobTypeBackfillChannel     = jobs.TypeBackfillChannel
	JobTypeIngestAttachment    = jobs.TypeIngestAttachment
)
