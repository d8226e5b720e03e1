package translator

import (
	"context"
	"fmt"

	"github.com/cloudwego/eino/compose"
	nodex "github.com/mminh007/machine-translation/agent/nodes"
)

func (a *Agent) compileTurnGraph(ctx context.Context) (compose.Runnable[*nodex.TurnState, *nodex.TurnState], error) {
	graph := compose.NewGraph[*nodex.TurnState, *nodex.TurnState]()

	if err := graph.AddLambdaNode("load_thread",
		compose.InvokableLambda(func(ctx context.Context, in *nodex.TurnState) (*nodex.TurnState, error) {
			return nodex.LoadThread(ctx, in, a.store)
		}),
	); err != nil {
		return nil, fmt.Errorf("add node load_thread: %w", err)
	}

	if err := graph.AddLambdaNode("prepare", compose.InvokableLambda(nodex.PrepareTranslation)); err != nil {
		return nil, fmt.Errorf("add node prepare: %w", err)
	}

	if err := graph.AddLambdaNode(nodex.NodeAskLanguage, compose.InvokableLambda(nodex.AskLanguage)); err != nil {
		return nil, fmt.Errorf("add node %s: %w", nodex.NodeAskLanguage, err)
	}

	if err := graph.AddLambdaNode(nodex.NodeTranslate,
		compose.InvokableLambda(func(ctx context.Context, in *nodex.TurnState) (*nodex.TurnState, error) {
			return nodex.Translate(ctx, in, a.models)
		}),
	); err != nil {
		return nil, fmt.Errorf("add node %s: %w", nodex.NodeTranslate, err)
	}

	if err := graph.AddLambdaNode("save_thread",
		compose.InvokableLambda(func(ctx context.Context, in *nodex.TurnState) (*nodex.TurnState, error) {
			return nodex.SaveThread(ctx, in, a.store)
		}),
	); err != nil {
		return nil, fmt.Errorf("add node save_thread: %w", err)
	}

	if err := graph.AddLambdaNode("publish", compose.InvokableLambda(nodex.Publish)); err != nil {
		return nil, fmt.Errorf("add node publish: %w", err)
	}

	edges := [][2]string{
		{compose.START, "load_thread"},
		{"load_thread", "prepare"},
		{nodex.NodeAskLanguage, "save_thread"},
		{nodex.NodeTranslate, "save_thread"},
		{"save_thread", "publish"},
		{"publish", compose.END},
	}

	for _, edge := range edges {
		if err := graph.AddEdge(edge[0], edge[1]); err != nil {
			return nil, fmt.Errorf("add edge %s->%s: %w", edge[0], edge[1], err)
		}
	}

	branch := compose.NewGraphBranch(nodex.RouteTranslation, map[string]bool{
		nodex.NodeAskLanguage: true,
		nodex.NodeTranslate:   true,
	})
	if err := graph.AddBranch("prepare", branch); err != nil {
		return nil, fmt.Errorf("add branch prepare: %w", err)
	}

	runner, err := graph.Compile(ctx, compose.WithGraphName("translator.turn"))
	if err != nil {
		return nil, fmt.Errorf("compile translator graph: %w", err)
	}
	return runner, nil
}
