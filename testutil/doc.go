/*
Package testutil 提供 moneta 测试的共享工具和辅助函数。

# 概述

testutil 包为各包的单元测试提供统一的辅助能力，避免重复实现相似的
测试基础设施。

# 核心能力

  - 上下文辅助: TestContext，自动注册 Cleanup 防止泄漏
  - 异步断言: AssertEventuallyTrue，超时轮询等待条件满足
  - 数据工具: MustJSON / Conversation，简化测试数据构造

# 子包

  - testutil/mocks: MockProvider（按脚本返回补全结果，含工具调用）与
    ScriptedRunner（按 Agent 名称返回预设 Decision），均支持错误注入
  - testutil/fixtures: 银行场景的示例工作流定义与对话

# 使用示例

	ctx := testutil.TestContext(t)
	provider := mocks.NewMockProvider().WithResponse("hello")
	resp, err := provider.Completion(ctx, req)
*/
package testutil
