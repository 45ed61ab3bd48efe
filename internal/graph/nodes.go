package graph

import "fmt"

// NodeID names a stage of the run graph.
type NodeID string

const (
	NodeEntry                NodeID = "entry"
	NodeGenerateCandidates   NodeID = "generate-candidates"
	NodeScoreDensity         NodeID = "score-density"
	NodeRank                 NodeID = "rank"
	NodeSelect               NodeID = "select"
	NodeExecuteSubgoal       NodeID = "execute-subgoal"
	NodeProbe                NodeID = "probe"
	NodeRegenerateCandidates NodeID = "regenerate-candidates"
	NodeReRank               NodeID = "re-rank"
	NodeReSelect             NodeID = "re-select"
	NodeDispatch             NodeID = "dispatch"
	NodeExecuteTool          NodeID = "execute-tool"
	NodeAppendObservation    NodeID = "append-observation"
	NodeVerifyGoal           NodeID = "verify-goal"
	NodeRetry                NodeID = "retry"
	NodeSummarize            NodeID = "summarize"
	NodeTerminal             NodeID = "terminal"
)

// edges holds the unconditional transitions. dispatch and verify-goal are
// routed by their branch functions instead.
var edges = map[NodeID]NodeID{
	NodeEntry:                NodeGenerateCandidates,
	NodeGenerateCandidates:   NodeScoreDensity,
	NodeScoreDensity:         NodeRank,
	NodeRank:                 NodeSelect,
	NodeSelect:               NodeExecuteSubgoal,
	NodeExecuteSubgoal:       NodeProbe,
	NodeProbe:                NodeRegenerateCandidates,
	NodeRegenerateCandidates: NodeReRank,
	NodeReRank:               NodeReSelect,
	NodeReSelect:             NodeDispatch,
	NodeExecuteTool:          NodeAppendObservation,
	NodeAppendObservation:    NodeVerifyGoal,
	NodeRetry:                NodeGenerateCandidates,
	NodeSummarize:            NodeTerminal,
}

// dispatchRoute is the outcome of branch 1.
type dispatchRoute int

const (
	routeRepredict dispatchRoute = iota
	routeExecute
)

// verifyRoute is the outcome of branch 2.
type verifyRoute int

const (
	routeAchieved verifyRoute = iota
	routeRetry
	routeExhausted
)

func dispatchTarget(r dispatchRoute) (NodeID, error) {
	switch r {
	case routeRepredict:
		return NodeExecuteSubgoal, nil
	case routeExecute:
		return NodeExecuteTool, nil
	default:
		return "", fmt.Errorf("unhandled dispatch route %d", r)
	}
}

func verifyTarget(r verifyRoute) (NodeID, error) {
	switch r {
	case routeAchieved, routeExhausted:
		return NodeSummarize, nil
	case routeRetry:
		return NodeRetry, nil
	default:
		return "", fmt.Errorf("unhandled verification route %d", r)
	}
}
