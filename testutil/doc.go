/*
Package testutil 提供 jsonformer 测试的共享工具和辅助函数。

# 核心能力

  - 上下文辅助: TestContext / TestContextWithTimeout / CancelledContext，
    自动注册 Cleanup 防止泄漏
  - JSON 辅助: AssertJSONEqual / MustJSON

# 子包

  - testutil/mocks: MockProvider，支持固定响应、错误注入与调用记录

# 使用示例

	ctx := testutil.TestContext(t)
	provider := mocks.NewMockProvider().WithResponse(`{"name":"Ada"}`)
	out, err := gen.Generate(ctx, "...")
*/
package testutil
