package queue

type TaskType string

const (
	// TaskTypeMailboxSync drains provider deltas for one accepted
	// notification (sync_event_logs row).
	TaskTypeMailboxSync TaskType = "mailbox_sync"
	// TaskTypeMailboxBackfill imports recent history for a freshly
	// connected mailbox.
	TaskTypeMailboxBackfill TaskType = "mailbox_backfill"
	TaskTypeCampaignStep    TaskType = "campaign_step"
	TaskTypePublishPost     TaskType = "publish_post"
	TaskTypeEnrichLead      TaskType = "enrich_lead"
	TaskTypeIndexSearch     TaskType = "index_search"
)

const (
	IndexEntityLead   = "lead"
	IndexEntityThread = "thread"
)
