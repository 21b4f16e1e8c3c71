package driver

const (
	SaveInsightNodeQuery = `
		MERGE (n:Insight {uuid: $uuid})
		SET n.owner = $owner,
			n.case_id = $case_id,
			n.tier = $tier,
			n.summary = $summary,
			n.relevance = $relevance,
			n.created_at = $created_at
		RETURN n.uuid AS uuid
	`

	LoadOwnerInsightsQuery = `
		MATCH (n:Insight {owner: $owner, tier: 'user'})
		RETURN n.uuid AS uuid, n.case_id AS case_id, n.summary AS summary,
			n.relevance AS relevance, n.created_at AS created_at
		ORDER BY n.relevance DESC
		LIMIT $limit
	`

	LoadEpisodicInsightsQuery = `
		MATCH (n:Insight {tier: 'episodic'})
		RETURN n.uuid AS uuid, n.case_id AS case_id, n.summary AS summary,
			n.relevance AS relevance, n.created_at AS created_at
		ORDER BY n.relevance DESC
		LIMIT $limit
	`
)
