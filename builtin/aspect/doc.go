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

// Package aspect provides stock aspects for common cross-cutting concerns:
// debug logging, concurrency limiting, call metrics, result caching, and
// script-defined advice bodies for the declarative DSL.
//
// Package aspect 提供常见横切关注点的现成切面：调试日志、并发限制、
// 调用指标、结果缓存，以及声明式 DSL 使用的脚本增强体。
package aspect
