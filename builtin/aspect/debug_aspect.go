/*
 * Copyright 2024 The Weave Authors.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package aspect

import (
	"github.com/weavego/weave/api/types"
)

// DebugOrder places debug advice late among Before bodies so it observes
// arguments as every earlier advice left them, and symmetrically early
// among After bodies.
const DebugOrder = 900

// NewDebugAspect builds a logging aspect for the operations matched by
// selector. Call entry and exit are reported through config.OnDebug when
// set, otherwise through config.Logger. The engine core itself never logs;
// visibility is entirely this aspect's job.
//
// NewDebugAspect 为选择器匹配的操作构建日志切面。调用的进入和退出
// 通过 config.OnDebug（若设置）或 config.Logger 上报。引擎核心自身
// 从不记录日志；可见性完全由本切面负责。
func NewDebugAspect(config types.Config, selector string) *types.Aspect {
	logger := types.NewLogger(config.Logger)
	report := config.OnDebug
	if report == nil {
		report = func(flowType string, operation string, inv *types.Invocation, err error) {
			if err != nil {
				logger.Printf("[%s] %s id=%s err=%v", flowType, operation, inv.ID(), err)
			} else {
				logger.Printf("[%s] %s id=%s args=%v", flowType, operation, inv.ID(), inv.Args)
			}
		}
	}

	return types.NewAspect("debug").
		Before(selector, DebugOrder, func(inv *types.Invocation) error {
			report(types.In, inv.Descriptor.Name, inv, nil)
			return nil
		}).
		After(selector, DebugOrder, func(inv *types.Invocation) {
			report(types.Out, inv.Descriptor.Name, inv, inv.Err())
		})
}
