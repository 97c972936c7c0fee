package strategy

import (
	"fmt"
	"sort"
	"sync"

	"papertrader/execution"
	"papertrader/market"
)

// Context 策略运行上下文。
type Context struct {
	StrategyID string
	Symbols    []string
}

// Strategy 策略接口。原型系统用鸭子类型协议，这里改为显式接口分发：
// OnTick 处理行情、OnSignal 处理外部 webhook 信号，两者都返回待提交订单。
type Strategy interface {
	OnInit(ctx *Context)
	OnTick(ctx *Context, event market.Event) []execution.Order
	OnSignal(ctx *Context, payload map[string]any) []execution.Order
}

// Registry 名称 → 策略实例的显式注册表，构造期填充，运行期只读。
type Registry struct {
	mu         sync.RWMutex
	strategies map[string]Strategy
}

func NewRegistry() *Registry {
	return &Registry{strategies: make(map[string]Strategy)}
}

func (r *Registry) Register(name string, s Strategy) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.strategies[name] = s
}

func (r *Registry) Get(name string) (Strategy, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.strategies[name]
	if !ok {
		return nil, fmt.Errorf("unknown strategy %q", name)
	}
	return s, nil
}

func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.strategies))
	for name := range r.strategies {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
